package store

import (
	"database/sql"

	"github.com/mentorlab/vivavoce/internal/model"
)

// SetProfileValue upserts a key-value pair in the profile table.
func (s *Store) SetProfileValue(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO profile (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetProfileValue returns the value for a profile key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetProfileValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM profile WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetProfile stores all profile fields as rows.
func (s *Store) SetProfile(p model.Profile) error {
	pairs := []struct{ k, v string }{
		{"student", p.Student},
		{"api_base", p.APIBase},
	}
	for _, pair := range pairs {
		if err := s.SetProfileValue(pair.k, pair.v); err != nil {
			return err
		}
	}
	return nil
}

// GetProfile reads all profile fields.
func (s *Store) GetProfile() (model.Profile, error) {
	var p model.Profile
	var err error

	if p.Student, err = s.GetProfileValue("student"); err != nil {
		return p, err
	}
	if p.APIBase, err = s.GetProfileValue("api_base"); err != nil {
		return p, err
	}
	return p, nil
}
