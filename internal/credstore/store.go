// Package credstore persists the OAuth2 refresh token between runs.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// TypeAuthorizedUser is the only credential type written or accepted.
const TypeAuthorizedUser = "authorized_user"

// Credential mirrors the token file on disk.
type Credential struct {
	Type         string `json:"type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// Complete reports whether every field needed to mint access tokens is set.
func (c Credential) Complete() bool {
	return c.Type == TypeAuthorizedUser &&
		c.ClientID != "" &&
		c.ClientSecret != "" &&
		c.RefreshToken != ""
}

// ClientSecrets holds the fields read from the client-secret file.
type ClientSecrets struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type secretsFile struct {
	Installed *ClientSecrets `json:"installed"`
	Web       *ClientSecrets `json:"web"`
}

// Store reads and writes the token file.
type Store struct {
	TokenPath   string
	SecretsPath string
}

// New returns a Store for the given token and client-secret paths.
func New(tokenPath, secretsPath string) *Store {
	return &Store{TokenPath: tokenPath, SecretsPath: secretsPath}
}

// Load returns the cached credential. Any read or decode problem, or an
// incomplete credential, is reported as absent.
func (s *Store) Load() (Credential, bool) {
	data, err := os.ReadFile(s.TokenPath)
	if err != nil {
		return Credential{}, false
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, false
	}
	if !cred.Complete() {
		return Credential{}, false
	}
	return cred, true
}

// Save writes a new token file built from refreshToken and the client-secret file.
// The previous token file stays untouched unless the new one is fully written.
func (s *Store) Save(refreshToken string) error {
	if refreshToken == "" {
		return errors.New("refresh token must not be empty")
	}
	secrets, err := ReadClientSecrets(s.SecretsPath)
	if err != nil {
		return err
	}
	cred := Credential{
		Type:         TypeAuthorizedUser,
		ClientID:     secrets.ClientID,
		ClientSecret: secrets.ClientSecret,
		RefreshToken: refreshToken,
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	return writeFileAtomic(s.TokenPath, data)
}

// ReadClientSecrets parses a client-secret file with an "installed" or "web" section.
func ReadClientSecrets(path string) (ClientSecrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClientSecrets{}, fmt.Errorf("read client secrets: %w", err)
	}
	var f secretsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return ClientSecrets{}, fmt.Errorf("decode client secrets %s: %w", path, err)
	}
	key := f.Installed
	if key == nil {
		key = f.Web
	}
	if key == nil {
		return ClientSecrets{}, fmt.Errorf("client secrets %s: no installed or web section", path)
	}
	if key.ClientID == "" || key.ClientSecret == "" {
		return ClientSecrets{}, fmt.Errorf("client secrets %s: client_id and client_secret are required", path)
	}
	return *key, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp token file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace token file %s: %w", path, err)
	}
	return nil
}
