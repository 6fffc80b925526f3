package datastore

import (
	"fmt"
	"strings"
)

// CreateUser inserts a new user account. Emails are stored lowercased so the
// unique index is effectively case-insensitive.
func (ds *DataStore) CreateUser(user *User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = RoleUser
	}
	if err := ds.DB.Create(user).Error; err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id.
func (ds *DataStore) GetUser(id uint) (User, error) {
	var user User
	if err := ds.DB.First(&user, id).Error; err != nil {
		return User{}, fmt.Errorf("getting user %d: %w", id, err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address.
func (ds *DataStore) GetUserByEmail(email string) (User, error) {
	var user User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := ds.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return User{}, fmt.Errorf("getting user by email: %w", err)
	}
	return user, nil
}

// UpdateUser persists changes to an existing user.
func (ds *DataStore) UpdateUser(user *User) error {
	if err := ds.DB.Save(user).Error; err != nil {
		return fmt.Errorf("updating user %d: %w", user.ID, err)
	}
	return nil
}

// CountUsers returns the number of registered users.
func (ds *DataStore) CountUsers() (int64, error) {
	var count int64
	if err := ds.DB.Model(&User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}
