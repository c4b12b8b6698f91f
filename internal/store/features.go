package db

import (
	"database/sql"

	"github.com/frayhub/fray/internal/types"
)

const featureSelect = `
	SELECT f.guid, f.title, f.description, f.created_by, f.status, f.status_reason, f.created_at,
		COALESCE((SELECT SUM(vote) FROM fray_feature_votes WHERE feature_guid = f.guid), 0)
	FROM fray_feature_requests f
`

// CreateFeatureRequest inserts a new feature request.
func CreateFeatureRequest(db *sql.DB, feature types.FeatureRequest) (types.FeatureRequest, error) {
	guid := feature.GUID
	if guid == "" {
		var err error
		guid, err = generateUniqueGUID(db, "fray_feature_requests", "guid", "ftr")
		if err != nil {
			return types.FeatureRequest{}, err
		}
	}
	feature.GUID = guid
	if feature.Status == "" {
		feature.Status = types.FeatureStatusOpen
	}

	_, err := db.Exec(`
		INSERT INTO fray_feature_requests (guid, title, description, created_by, status, status_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, guid, feature.Title, optionalStringArg(feature.Description), feature.CreatedBy,
		string(feature.Status), optionalStringArg(feature.StatusReason), feature.CreatedAt)
	if err != nil {
		return types.FeatureRequest{}, err
	}
	return feature, nil
}

// GetFeatureRequest returns a feature request with its computed vote total.
func GetFeatureRequest(db *sql.DB, guid string) (*types.FeatureRequest, error) {
	row := db.QueryRow(featureSelect+` WHERE f.guid = ?`, guid)
	return scanOptionalFeature(row)
}

// ListFeatureRequests returns feature requests ordered by vote total then
// recency, optionally filtered by status.
func ListFeatureRequests(db *sql.DB, status types.FeatureStatus) ([]types.FeatureRequest, error) {
	query := featureSelect
	var args []any
	if status != "" {
		query += ` WHERE f.status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY 8 DESC, f.created_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var features []types.FeatureRequest
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// SetFeatureStatus transitions a feature request's lifecycle status.
func SetFeatureStatus(db *sql.DB, guid string, status types.FeatureStatus, reason *string) error {
	_, err := db.Exec(`
		UPDATE fray_feature_requests SET status = ?, status_reason = ? WHERE guid = ?
	`, string(status), optionalStringArg(reason), guid)
	return err
}

// DeleteFeatureRequest removes a feature request and its votes.
func DeleteFeatureRequest(db *sql.DB, guid string) error {
	return withTxDB(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM fray_feature_votes WHERE feature_guid = ?`, guid); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM fray_feature_requests WHERE guid = ?`, guid)
		return err
	})
}

// CastVote upserts a user's +1/-1 vote on a feature request (last write wins).
func CastVote(db *sql.DB, featureGUID, userGUID string, vote int, at int64) error {
	_, err := db.Exec(`
		INSERT INTO fray_feature_votes (feature_guid, user_guid, vote, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (feature_guid, user_guid) DO UPDATE SET vote = excluded.vote, created_at = excluded.created_at
	`, featureGUID, userGUID, vote, at)
	return err
}

func scanOptionalFeature(row rowScanner) (*types.FeatureRequest, error) {
	f, err := scanFeature(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanFeature(row rowScanner) (types.FeatureRequest, error) {
	var f types.FeatureRequest
	var description, statusReason sql.NullString
	var status string
	if err := row.Scan(&f.GUID, &f.Title, &description, &f.CreatedBy, &status, &statusReason, &f.CreatedAt, &f.VoteTotal); err != nil {
		return types.FeatureRequest{}, err
	}
	f.Status = types.FeatureStatus(status)
	f.Description = nullStringPtr(description)
	f.StatusReason = nullStringPtr(statusReason)
	return f, nil
}
