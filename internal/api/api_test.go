package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fancyplanties/fancy-planties/internal/conf"
	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/security"
)

func testAPISettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "planties.db")
	settings.Security.SessionSecret = "test-secret-0123456789abcdef"
	settings.Security.SessionDuration = 24
	settings.Security.BcryptCost = 10
	settings.Search.CacheTTL = 60
	settings.Search.HistorySize = 20
	settings.Search.MaxResults = 500
	settings.Search.DefaultPerPage = 20
	settings.Import.MaxRows = 1000
	return settings
}

func newTestAPI(t *testing.T, settings *conf.Settings) (*Controller, *echo.Echo) {
	t.Helper()
	t.Chdir(t.TempDir()) // keep the api log file out of the package dir

	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() {
		_ = ds.Close()
	})

	e := echo.New()
	c, err := New(e, ds, settings, log.New(io.Discard, "", 0), nil)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)

	return c, e
}

// client drives the API like a browser: it carries the session cookie and
// echoes the CSRF token on mutating requests.
type client struct {
	t       *testing.T
	e       *echo.Echo
	cookies []*http.Cookie
	csrf    string
}

func (cl *client) do(method, path string, body any) *httptest.ResponseRecorder {
	cl.t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(body)
			require.NoError(cl.t, err)
			reader = strings.NewReader(string(data))
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cl.cookies {
		req.AddCookie(c)
	}
	if cl.csrf != "" {
		req.Header.Set(security.CSRFHeader, cl.csrf)
	}

	rec := httptest.NewRecorder()
	cl.e.ServeHTTP(rec, req)

	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		cl.cookies = cookies
	}
	return rec
}

func (cl *client) doJSON(method, path string, body any, out any) *httptest.ResponseRecorder {
	cl.t.Helper()
	rec := cl.do(method, path, body)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(cl.t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func registerClient(t *testing.T, e *echo.Echo, email string) *client {
	t.Helper()
	cl := &client{t: t, e: e}

	var resp AuthResponse
	rec := cl.doJSON(http.MethodPost, "/api/auth/register", RegisterRequest{
		Email:    email,
		Password: "correct horse battery",
		Name:     "Tester",
	}, &resp)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cl.csrf = resp.CSRFToken
	return cl
}

func createPlant(t *testing.T, cl *client, genus, species, commonName string) uint {
	t.Helper()
	var plant PlantResponse
	rec := cl.doJSON(http.MethodPost, "/api/plants", PlantRequest{
		Family:     "Araceae",
		Genus:      genus,
		Species:    species,
		CommonName: commonName,
	}, &plant)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return plant.ID
}

func TestRegisterLoginStatusFlow(t *testing.T) {
	_, e := newTestAPI(t, testAPISettings(t))
	cl := registerClient(t, e, "first@example.com")

	// First account becomes a curator
	var status map[string]any
	rec := cl.doJSON(http.MethodGet, "/api/auth/status", nil, &status)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, status["authenticated"])
	assert.Equal(t, datastore.RoleCurator, status["role"])

	// Second account is a regular user
	cl2 := registerClient(t, e, "second@example.com")
	rec = cl2.doJSON(http.MethodGet, "/api/auth/status", nil, &status)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, datastore.RoleUser, status["role"])

	// Duplicate registration is rejected
	fresh := &client{t: t, e: e}
	rec = fresh.do(http.MethodPost, "/api/auth/register", RegisterRequest{
		Email: "first@example.com", Password: "correct horse battery",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Login with fresh client
	login := &client{t: t, e: e}
	var resp AuthResponse
	rec = login.doJSON(http.MethodPost, "/api/auth/login", LoginRequest{
		Email: "first@example.com", Password: "correct horse battery",
	}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, resp.CSRFToken)

	// Wrong password is a 401 with no detail about which part failed
	rec = (&client{t: t, e: e}).do(http.MethodPost, "/api/auth/login", LoginRequest{
		Email: "first@example.com", Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout clears the session
	login.csrf = resp.CSRFToken
	rec = login.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = login.doJSON(http.MethodGet, "/api/auth/status", nil, &status)
	assert.Equal(t, false, status["authenticated"])
}

func TestAuthAndCSRFEnforcement(t *testing.T) {
	_, e := newTestAPI(t, testAPISettings(t))

	// No session at all
	rec := (&client{t: t, e: e}).do(http.MethodGet, "/api/plant-instances", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Session but no CSRF token on a mutating request
	cl := registerClient(t, e, "csrf@example.com")
	token := cl.csrf
	cl.csrf = ""
	rec = cl.do(http.MethodPost, "/api/plants", PlantRequest{
		Family: "Araceae", Genus: "Monstera", Species: "deliciosa",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Reads work without the token
	rec = cl.do(http.MethodGet, "/api/plants", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	cl.csrf = token
	rec = cl.do(http.MethodPost, "/api/plants", PlantRequest{
		Family: "Araceae", Genus: "Monstera", Species: "deliciosa",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPlantInstanceLifecycle(t *testing.T) {
	_, e := newTestAPI(t, testAPISettings(t))
	cl := registerClient(t, e, "plants@example.com")
	plantID := createPlant(t, cl, "Monstera", "deliciosa", "Swiss Cheese Plant")

	var instance datastore.PlantInstance
	rec := cl.doJSON(http.MethodPost, "/api/plant-instances", InstanceRequest{
		PlantID:            plantID,
		Nickname:           "Monty",
		Location:           "Living Room",
		FertilizerSchedule: "every 2 weeks",
		LastFertilized:     "2025-03-01",
	}, &instance)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, instance.FertilizerDue)
	assert.Equal(t, "2025-03-15", instance.FertilizerDue.Format("2006-01-02"))
	assert.Equal(t, "Swiss Cheese Plant", instance.Plant.CommonName)

	// Care event advances the schedule
	var event datastore.CareHistory
	rec = cl.doJSON(http.MethodPost, fmt.Sprintf("/api/plant-instances/%d/care", instance.ID), CareEventRequest{
		CareType: datastore.CareFertilizer,
		CareDate: "2025-04-01",
	}, &event)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var updated datastore.PlantInstance
	rec = cl.doJSON(http.MethodGet, fmt.Sprintf("/api/plant-instances/%d", instance.ID), nil, &updated)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, updated.FertilizerDue)
	assert.Equal(t, "2025-04-15", updated.FertilizerDue.Format("2006-01-02"))

	// Care history is returned newest first
	var history []datastore.CareHistory
	rec = cl.doJSON(http.MethodGet, fmt.Sprintf("/api/plant-instances/%d/care", instance.ID), nil, &history)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, history, 1)
	assert.Equal(t, datastore.CareFertilizer, history[0].CareType)

	// Unknown care type is rejected
	rec = cl.do(http.MethodPost, fmt.Sprintf("/api/plant-instances/%d/care", instance.ID), CareEventRequest{
		CareType: "sing to it",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = cl.do(http.MethodDelete, fmt.Sprintf("/api/plant-instances/%d", instance.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = cl.do(http.MethodGet, fmt.Sprintf("/api/plant-instances/%d", instance.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInstancesAreUserScoped(t *testing.T) {
	_, e := newTestAPI(t, testAPISettings(t))
	owner := registerClient(t, e, "owner@example.com")
	plantID := createPlant(t, owner, "Ficus", "lyrata", "Fiddle Leaf Fig")

	var instance datastore.PlantInstance
	rec := owner.doJSON(http.MethodPost, "/api/plant-instances", InstanceRequest{
		PlantID: plantID, Nickname: "Figaro",
	}, &instance)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Another user sees 404, not 403, for a foreign instance
	intruder := registerClient(t, e, "intruder@example.com")
	rec = intruder.do(http.MethodGet, fmt.Sprintf("/api/plant-instances/%d", instance.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = intruder.do(http.MethodDelete, fmt.Sprintf("/api/plant-instances/%d", instance.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPropagationPromoteFlow(t *testing.T) {
	_, e := newTestAPI(t, testAPISettings(t))
	cl := registerClient(t, e, "props@example.com")
	plantID := createPlant(t, cl, "Epipremnum", "aureum", "Golden Pothos")

	var prop datastore.Propagation
	rec := cl.doJSON(http.MethodPost, "/api/propagations", PropagationRequest{
		PlantID:     plantID,
		Nickname:    "Cutting A",
		DateStarted: "2025-02-01",
		Source:      datastore.SourceExternal,
	}, &prop)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, datastore.PropagationStarted, prop.Status)

	// Not yet established
	rec = cl.do(http.MethodPost, fmt.Sprintf("/api/propagations/%d/promote", prop.ID), PromoteRequest{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = cl.do(http.MethodPut, fmt.Sprintf("/api/propagations/%d", prop.ID), PropagationRequest{
		Nickname: "Cutting A",
		Status:   datastore.PropagationEstablished,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var instance datastore.PlantInstance
	rec = cl.doJSON(http.MethodPost, fmt.Sprintf("/api/propagations/%d/promote", prop.ID), PromoteRequest{
		Location: "Kitchen",
	}, &instance)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Cutting A", instance.Nickname, "nickname carried over from the propagation")
	assert.Equal(t, "Kitchen", instance.Location)

	// The propagation is deactivated after promotion
	var got datastore.Propagation
	rec = cl.doJSON(http.MethodGet, fmt.Sprintf("/api/propagations/%d", prop.ID), nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, got.IsActive)
}

func TestCuratorGateOnPlantDeletion(t *testing.T) {
	_, e := newTestAPI(t, testAPISettings(t))
	curator := registerClient(t, e, "curator@example.com")
	plantID := createPlant(t, curator, "Monstera", "adansonii", "Swiss Cheese Vine")

	user := registerClient(t, e, "user@example.com")
	rec := user.do(http.MethodDelete, fmt.Sprintf("/api/plants/%d", plantID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = curator.do(http.MethodDelete, fmt.Sprintf("/api/plants/%d", plantID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestVerifiedPlantEditRequiresCurator(t *testing.T) {
	_, e := newTestAPI(t, testAPISettings(t))
	curator := registerClient(t, e, "verify@example.com")

	var plant PlantResponse
	rec := curator.doJSON(http.MethodPost, "/api/plants", PlantRequest{
		Family: "Araceae", Genus: "Anthurium", Species: "andraeanum",
		IsVerified: true,
	}, &plant)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, plant.IsVerified)

	user := registerClient(t, e, "plain@example.com")
	rec = user.do(http.MethodPut, fmt.Sprintf("/api/plants/%d", plant.ID), PlantRequest{
		Family: "Araceae", Genus: "Anthurium", Species: "andraeanum", CommonName: "edited",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestImportAndExportEndpoints(t *testing.T) {
	_, e := newTestAPI(t, testAPISettings(t))
	cl := registerClient(t, e, "import@example.com")

	csv := strings.Join([]string{
		"Family,Genus,Species,Cultivar,Common Name,Care Guide",
		"Araceae,Monstera,deliciosa,,Swiss Cheese Plant,",
		"Araceae,,missing-genus,,Broken,",
	}, "\n")

	var started map[string]any
	rec := cl.doJSON(http.MethodPost, "/api/import/csv?type=plant_taxonomy", csv, &started)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	importID := int(started["id"].(float64))

	// Poll until the background import settles
	var status map[string]any
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = cl.doJSON(http.MethodGet, fmt.Sprintf("/api/import/csv/%d", importID), nil, &status)
		require.Equal(t, http.StatusOK, rec.Code)
		if status["status"] == datastore.ImportCompleted || status["status"] == datastore.ImportFailed {
			break
		}
		require.True(t, time.Now().Before(deadline), "import did not finish in time")
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, datastore.ImportCompleted, status["status"])
	assert.EqualValues(t, 1, status["importedRows"])
	assert.EqualValues(t, 1, status["skippedRows"])

	// Unknown type is rejected up front
	rec = cl.do(http.MethodPost, "/api/import/csv?type=gardens", csv)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Export round-trips the taxonomy
	rec = cl.do(http.MethodGet, "/api/export/csv?type=plant_taxonomy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	assert.Contains(t, rec.Body.String(), "Swiss Cheese Plant")
}

func TestSearchEndpointAndHistory(t *testing.T) {
	_, e := newTestAPI(t, testAPISettings(t))
	cl := registerClient(t, e, "search@example.com")
	plantID := createPlant(t, cl, "Monstera", "deliciosa", "Swiss Cheese Plant")

	rec := cl.do(http.MethodPost, "/api/plant-instances", InstanceRequest{
		PlantID: plantID, Nickname: "Monty", Location: "Living Room",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	rec = cl.doJSON(http.MethodPost, "/api/search", map[string]any{"query": "cheese"}, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	results := resp["results"].([]any)
	require.Len(t, results, 1)

	var history map[string]any
	rec = cl.doJSON(http.MethodGet, "/api/search/history", nil, &history)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"cheese"}, history["queries"])

	// Presets round trip
	rec = cl.do(http.MethodPost, "/api/search/presets", map[string]any{
		"name":    "living room",
		"filters": map[string]any{"location": "Living Room"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var presets map[string]any
	rec = cl.doJSON(http.MethodGet, "/api/search/presets", nil, &presets)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, presets["results"], 1)
}

func TestLoginRateLimit(t *testing.T) {
	settings := testAPISettings(t)
	settings.Security.RateLimit.Enabled = true
	settings.Security.RateLimit.RPS = 0.01
	settings.Security.RateLimit.Burst = 2
	_, e := newTestAPI(t, settings)

	body := LoginRequest{Email: "nobody@example.com", Password: "irrelevant"}
	cl := &client{t: t, e: e}

	assert.Equal(t, http.StatusUnauthorized, cl.do(http.MethodPost, "/api/auth/login", body).Code)
	assert.Equal(t, http.StatusUnauthorized, cl.do(http.MethodPost, "/api/auth/login", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, cl.do(http.MethodPost, "/api/auth/login", body).Code)
}

func TestHealthEndpointIsPublic(t *testing.T) {
	_, e := newTestAPI(t, testAPISettings(t))

	var health map[string]any
	rec := (&client{t: t, e: e}).doJSON(http.MethodGet, "/api/health", nil, &health)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "connected", health["databaseStatus"])
}

func TestImageEndpointsWithoutStore(t *testing.T) {
	_, e := newTestAPI(t, testAPISettings(t))
	cl := registerClient(t, e, "images@example.com")

	rec := cl.do(http.MethodPost, "/api/images/upload-url", map[string]any{
		"entityType": "instance", "entityId": 1, "contentType": "image/png",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
