package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crm-backend/internal/core/cache"
)

// Record is one stored entity of any type, keyed by its "id" attribute and
// discriminated by "type" (user / client / project / task).
type Record map[string]any

func (r Record) Str(key string) string {
	s, _ := r[key].(string)
	return s
}

// RecordModel is the single physical table: every entity kind shares it, the
// full record lives in Doc as JSON. The type column is intentionally not
// indexed; listing by type is a full scan, same cost model as the single
// DynamoDB-style table this layout emulates.
type RecordModel struct {
	ID   string `gorm:"primaryKey;size:64"`
	Type string `gorm:"size:16"`
	Doc  string `gorm:"type:text"`
}

func (RecordModel) TableName() string { return "records" }

var (
	ErrNotFound = errors.New("record not found")
	ErrNoID     = errors.New("record has no id")
)

type Store struct {
	db    *gorm.DB
	cache *cache.Cache // nil disables read caching
}

func New(db *gorm.DB, c *cache.Cache) *Store { return &Store{db: db, cache: c} }

func (s *Store) AutoMigrate() error { return s.db.AutoMigrate(&RecordModel{}) }

func cacheKey(id string) string { return "rec:" + id }

// Put upserts the full record by its id. No concurrency check: last writer wins.
func (s *Store) Put(ctx context.Context, rec Record) error {
	id := rec.Str("id")
	if id == "" {
		return ErrNoID
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	row := RecordModel{ID: id, Type: rec.Str("type"), Doc: string(b)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, cacheKey(id))
	}
	return nil
}

// Get is a point lookup; an absent record is (nil, nil), not an error.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var doc []byte
	if s.cache != nil {
		b, err := s.cache.GetOrLoad(ctx, cacheKey(id), func(ctx context.Context) ([]byte, error) {
			return s.loadDoc(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		doc = b
	} else {
		b, err := s.loadDoc(ctx, id)
		if err != nil {
			return nil, err
		}
		doc = b
	}
	if string(doc) == "null" {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// loadDoc encodes absence as the literal "null" so it can ride the byte cache.
func (s *Store) loadDoc(ctx context.Context, id string) ([]byte, error) {
	var row RecordModel
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []byte("null"), nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(row.Doc), nil
}

// ScanByType returns every record with the given discriminator. Order is
// unspecified and cost scales with total table size, not result size.
func (s *Store) ScanByType(ctx context.Context, typ string) ([]Record, error) {
	var rows []RecordModel
	if err := s.db.WithContext(ctx).Where("type = ?", typ).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		var rec Record
		if err := json.Unmarshal([]byte(row.Doc), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// PartialUpdate merges the field map into the stored record and returns the
// merged result. The "id" key is ignored. An empty field map is a no-op
// returning (nil, nil); a missing record is ErrNotFound. The merge is
// read-modify-write with no version check, so two concurrent updates to the
// same array field lose one append.
func (s *Store) PartialUpdate(ctx context.Context, id string, fields map[string]any) (Record, error) {
	merged := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "id" {
			continue
		}
		merged[k] = v
	}
	if len(merged) == 0 {
		return nil, nil
	}

	var row RecordModel
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(row.Doc), &rec); err != nil {
		return nil, err
	}
	for k, v := range merged {
		rec[k] = v
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(&RecordModel{}).Where("id = ?", id).Update("doc", string(b)).Error
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, cacheKey(id))
	}
	return rec, nil
}

// Delete is idempotent: removing an absent record succeeds. Callers that need
// a 404 check existence first.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&RecordModel{}, "id = ?", id).Error; err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, cacheKey(id))
	}
	return nil
}

// FindUserByEmail scans user records for a lowercased email match. First match
// wins if duplicates exist; uniqueness is only a pre-insert check upstream.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (Record, error) {
	email = strings.ToLower(email)
	users, err := s.ScanByType(ctx, "user")
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.ToLower(u.Str("email")) == email {
			return u, nil
		}
	}
	return nil, nil
}
