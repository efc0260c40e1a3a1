package auth

import (
	"os"
	"strconv"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It reads the same TELEGRAM_* variables the config loader honors.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(phone string) (*Account, error) {
	apiID, _ := strconv.Atoi(os.Getenv("TELEGRAM_API_ID"))
	apiHash := os.Getenv("TELEGRAM_API_HASH")
	envPhone := os.Getenv("TELEGRAM_PHONE")

	if apiID == 0 || apiHash == "" {
		return nil, ErrCredentialsNotFound
	}

	// The environment describes one account only; a mismatched phone
	// request falls through to the other stores
	if phone != "" && envPhone != "" && phone != envPhone {
		return nil, ErrCredentialsNotFound
	}
	if phone == "" {
		phone = envPhone
	}

	return &Account{
		Phone:        phone,
		APIID:        apiID,
		APIHash:      apiHash,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(phone string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(phone string) bool {
	apiID := os.Getenv("TELEGRAM_API_ID")
	apiHash := os.Getenv("TELEGRAM_API_HASH")
	return apiID != "" && apiHash != ""
}
