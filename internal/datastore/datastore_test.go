package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fancyplanties/fancy-planties/internal/conf"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "planties.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func seedUser(t *testing.T, store *SQLiteStore, email string) User {
	t.Helper()
	user := User{Email: email, PasswordHash: "x", Name: "Test"}
	require.NoError(t, store.CreateUser(&user))
	return user
}

func seedPlant(t *testing.T, store *SQLiteStore, genus, species string) Plant {
	t.Helper()
	plant := Plant{Family: "Araceae", Genus: genus, Species: species, CommonName: genus}
	require.NoError(t, store.CreatePlant(&plant))
	return plant
}

func TestCreateUserNormalizesEmail(t *testing.T) {
	store := newTestStore(t)

	user := User{Email: "  Anna@Example.COM ", PasswordHash: "h"}
	require.NoError(t, store.CreateUser(&user))

	got, err := store.GetUserByEmail("anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", got.Email)
	assert.Equal(t, RoleUser, got.Role)
}

func TestResolveOrCreatePlantIsCaseInsensitive(t *testing.T) {
	store := newTestStore(t)

	first := Plant{Family: "Araceae", Genus: "Monstera", Species: "deliciosa"}
	created, wasNew, err := store.ResolveOrCreatePlant(&first)
	require.NoError(t, err)
	assert.True(t, wasNew)

	second := Plant{Family: "araceae", Genus: "MONSTERA", Species: "Deliciosa"}
	resolved, wasNew, err := store.ResolveOrCreatePlant(&second)
	require.NoError(t, err)
	assert.False(t, wasNew, "case-insensitive match should reuse the existing row")
	assert.Equal(t, created.ID, resolved.ID)
}

func TestPlantInstanceScopedToUser(t *testing.T) {
	store := newTestStore(t)
	alice := seedUser(t, store, "alice@example.com")
	bob := seedUser(t, store, "bob@example.com")
	plant := seedPlant(t, store, "Monstera", "deliciosa")

	instance := PlantInstance{UserID: alice.ID, PlantID: plant.ID, Nickname: "Monty", IsActive: true}
	require.NoError(t, store.CreatePlantInstance(&instance))

	_, err := store.GetPlantInstance(alice.ID, instance.ID)
	require.NoError(t, err)

	// Bob must not see Alice's instance, and the error must look like not-found
	_, err = store.GetPlantInstance(bob.ID, instance.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = store.DeletePlantInstance(bob.ID, instance.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAddCareEventAdvancesSchedule(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "care@example.com")
	plant := seedPlant(t, store, "Epipremnum", "aureum")

	instance := PlantInstance{
		UserID:             user.ID,
		PlantID:            plant.ID,
		Nickname:           "Goldie",
		FertilizerSchedule: "every 2 weeks",
		IsActive:           true,
	}
	require.NoError(t, store.CreatePlantInstance(&instance))

	careDate := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := CareHistory{
		PlantInstanceID: instance.ID,
		UserID:          user.ID,
		CareType:        CareFertilizer,
		CareDate:        careDate,
	}
	require.NoError(t, store.AddCareEvent(&event))

	got, err := store.GetPlantInstance(user.ID, instance.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastFertilized)
	require.NotNil(t, got.FertilizerDue)
	assert.Equal(t, careDate.Add(14*24*time.Hour).Unix(), got.FertilizerDue.Unix())

	history, err := store.GetCareHistory(user.ID, instance.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, CareFertilizer, history[0].CareType)
}

func TestFilterPlantInstances(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "filter@example.com")
	plant := seedPlant(t, store, "Ficus", "lyrata")

	overdue := time.Now().Add(-48 * time.Hour)
	for i, loc := range []string{"kitchen", "kitchen", "office"} {
		inst := PlantInstance{
			UserID:   user.ID,
			PlantID:  plant.ID,
			Nickname: "plant",
			Location: loc,
			IsActive: i != 2,
		}
		if i == 0 {
			inst.FertilizerDue = &overdue
		}
		require.NoError(t, store.CreatePlantInstance(&inst))
	}

	results, total, err := store.FilterPlantInstances(user.ID, &InstanceFilters{Location: "kitchen"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, results, 2)

	results, total, err = store.FilterPlantInstances(user.ID, &InstanceFilters{OverdueOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, results, 1)

	facets, err := store.InstanceFacets(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, facets.ByLocation["kitchen"])
	assert.Equal(t, 2, facets.Active)
	assert.Equal(t, 1, facets.Inactive)
	assert.Equal(t, 1, facets.Overdue)
}

func TestCreatePlantInstancePersistsInactive(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "inactive@example.com")
	plant := seedPlant(t, store, "Calathea", "orbifolia")

	instance := PlantInstance{UserID: user.ID, PlantID: plant.ID, Nickname: "Dormant", IsActive: false}
	require.NoError(t, store.CreatePlantInstance(&instance))

	got, err := store.GetPlantInstance(user.ID, instance.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive, "explicit inactive must survive Create")

	prop := Propagation{
		UserID:      user.ID,
		PlantID:     plant.ID,
		DateStarted: time.Now(),
		Status:      PropagationStarted,
		IsActive:    false,
	}
	require.NoError(t, store.CreatePropagation(&prop))

	gotProp, err := store.GetPropagation(user.ID, prop.ID)
	require.NoError(t, err)
	assert.False(t, gotProp.IsActive)
}

func TestPromotePropagation(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "prop@example.com")
	plant := seedPlant(t, store, "Philodendron", "hederaceum")

	prop := Propagation{
		UserID:      user.ID,
		PlantID:     plant.ID,
		Nickname:    "Philly Jr",
		Location:    "windowsill",
		DateStarted: time.Now().Add(-60 * 24 * time.Hour),
		Status:      PropagationRooting,
		IsActive:    true,
	}
	require.NoError(t, store.CreatePropagation(&prop))

	// Not yet established
	err := store.PromotePropagation(user.ID, prop.ID, &PlantInstance{})
	require.Error(t, err)

	prop.Status = PropagationEstablished
	require.NoError(t, store.UpdatePropagation(&prop))

	instance := PlantInstance{}
	require.NoError(t, store.PromotePropagation(user.ID, prop.ID, &instance))
	assert.Equal(t, "Philly Jr", instance.Nickname)
	assert.Equal(t, plant.ID, instance.PlantID)

	// Propagation is deactivated and cannot be promoted twice
	got, err := store.GetPropagation(user.ID, prop.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	err = store.PromotePropagation(user.ID, prop.ID, &PlantInstance{})
	require.Error(t, err)
}

func TestSearchPresetUpsert(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "preset@example.com")

	preset := SearchPreset{UserID: user.ID, Name: "kitchen plants", Filters: `{"location":"kitchen"}`}
	require.NoError(t, store.SaveSearchPreset(&preset))

	update := SearchPreset{UserID: user.ID, Name: "kitchen plants", Filters: `{"location":"kitchen","active":true}`}
	require.NoError(t, store.SaveSearchPreset(&update))
	assert.Equal(t, preset.ID, update.ID, "same name should update in place")

	presets, err := store.ListSearchPresets(user.ID)
	require.NoError(t, err)
	require.Len(t, presets, 1)
	assert.JSONEq(t, `{"location":"kitchen","active":true}`, presets[0].Filters)
}

func TestDeletePlantProtectsReferences(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "ref@example.com")
	plant := seedPlant(t, store, "Monstera", "adansonii")

	instance := PlantInstance{UserID: user.ID, PlantID: plant.ID, IsActive: true}
	require.NoError(t, store.CreatePlantInstance(&instance))

	assert.ErrorIs(t, store.DeletePlant(plant.ID), ErrPlantInUse)

	require.NoError(t, store.DeletePlantInstance(user.ID, instance.ID))
	require.NoError(t, store.DeletePlant(plant.ID))

	// A second delete finds nothing and must say so
	assert.ErrorIs(t, store.DeletePlant(plant.ID), gorm.ErrRecordNotFound)
}

func TestParseScheduleInterval(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"weekly", 7 * 24 * time.Hour, true},
		{"every 4 weeks", 28 * 24 * time.Hour, true},
		{"Every 10 Days", 10 * 24 * time.Hour, true},
		{"monthly", 30 * 24 * time.Hour, true},
		{"whenever", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseScheduleInterval(tc.in)
		assert.Equal(t, tc.ok, ok, "schedule %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "schedule %q", tc.in)
		}
	}
}
