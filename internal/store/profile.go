package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/devlink/apiserver/internal/db"
	"github.com/devlink/apiserver/types"
)

// ProfileRepository handles persistence for profiles. Experience,
// education, skills and social links are stored as JSONB sub-documents.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileSelect = `
	SELECT p.id, p.user_id, p.company, p.website, p.location, p.bio, p.github_username,
	       p.status, p.skills, p.experience, p.education, p.social, p.created_at,
	       u.name, u.avatar
	FROM profiles p
	JOIN users u ON u.id = p.user_id`

func scanProfile(row rowScanner) (types.Profile, error) {
	var profile types.Profile
	var owner types.UserSummary
	var skillsJSON, experienceJSON, educationJSON, socialJSON []byte
	err := row.Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Company,
		&profile.Website,
		&profile.Location,
		&profile.Bio,
		&profile.GitHubUsername,
		&profile.Status,
		&skillsJSON,
		&experienceJSON,
		&educationJSON,
		&socialJSON,
		&profile.CreatedAt,
		&owner.Name,
		&owner.Avatar,
	)
	if err != nil {
		return types.Profile{}, translate(err)
	}

	if err := decodeJSON(skillsJSON, &profile.Skills); err != nil {
		return types.Profile{}, err
	}
	if err := decodeJSON(experienceJSON, &profile.Experience); err != nil {
		return types.Profile{}, err
	}
	if err := decodeJSON(educationJSON, &profile.Education); err != nil {
		return types.Profile{}, err
	}
	if err := decodeJSON(socialJSON, &profile.Social); err != nil {
		return types.Profile{}, err
	}

	owner.ID = profile.UserID
	profile.User = &owner
	return profile, nil
}

func (r *ProfileRepository) List(ctx context.Context) ([]types.Profile, error) {
	rows, err := r.db.QueryContext(ctx, profileSelect+` ORDER BY p.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]types.Profile, 0)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *ProfileRepository) GetByUser(ctx context.Context, userID string) (types.Profile, error) {
	return scanProfile(r.db.QueryRowContext(ctx, profileSelect+` WHERE p.user_id = $1`, userID))
}

// Create inserts a new profile. It returns ErrConflict when the user
// already has one and ErrMissingReference when the user does not exist.
func (r *ProfileRepository) Create(ctx context.Context, profile types.Profile) (types.Profile, error) {
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}

	args, err := profileArgs(profile)
	if err != nil {
		return types.Profile{}, err
	}

	const query = `
		INSERT INTO profiles (
			company, website, location, bio, github_username, status,
			skills, experience, education, social, id, user_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	args = append(args, profile.ID, profile.UserID, profile.CreatedAt)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return types.Profile{}, translate(err)
	}

	return r.GetByUser(ctx, profile.UserID)
}

// UpdateByUser locks the profile owned by userID, applies fn and writes the
// result back in one transaction. fn must not change the owner. An error from
// fn aborts the update and is returned unchanged.
func (r *ProfileRepository) UpdateByUser(ctx context.Context, userID string, fn func(*types.Profile) error) (types.Profile, error) {
	var updated types.Profile
	err := db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		profile, err := scanProfile(tx.QueryRowContext(ctx, profileSelect+` WHERE p.user_id = $1 FOR UPDATE OF p`, userID))
		if err != nil {
			return err
		}

		if err := fn(&profile); err != nil {
			return err
		}

		args, err := profileArgs(profile)
		if err != nil {
			return err
		}

		const query = `
			UPDATE profiles
			SET company = $1,
				website = $2,
				location = $3,
				bio = $4,
				github_username = $5,
				status = $6,
				skills = $7,
				experience = $8,
				education = $9,
				social = $10
			WHERE user_id = $11`
		if _, err := tx.ExecContext(ctx, query, append(args, userID)...); err != nil {
			return translate(err)
		}

		profile.UserID = userID
		updated = profile
		return nil
	})
	if err != nil {
		return types.Profile{}, err
	}
	return updated, nil
}

func profileArgs(profile types.Profile) ([]any, error) {
	skills := profile.Skills
	if skills == nil {
		skills = []string{}
	}
	experience := profile.Experience
	if experience == nil {
		experience = []types.Experience{}
	}
	education := profile.Education
	if education == nil {
		education = []types.Education{}
	}

	skillsJSON, err := encodeJSON(skills)
	if err != nil {
		return nil, err
	}
	experienceJSON, err := encodeJSON(experience)
	if err != nil {
		return nil, err
	}
	educationJSON, err := encodeJSON(education)
	if err != nil {
		return nil, err
	}
	socialJSON, err := encodeJSON(profile.Social)
	if err != nil {
		return nil, err
	}

	return []any{
		profile.Company,
		profile.Website,
		profile.Location,
		profile.Bio,
		profile.GitHubUsername,
		profile.Status,
		skillsJSON,
		experienceJSON,
		educationJSON,
		socialJSON,
	}, nil
}
