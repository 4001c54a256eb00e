package repo

import (
	"errors"
	"strings"
	"time"

	"ShareGate/model"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no record matches a token lookup.
var ErrNotFound = errors.New("share link not found")

// ErrDuplicateToken is returned when a create hits the token unique index.
var ErrDuplicateToken = errors.New("share link token already exists")

// LinkRepository is the keyed record store for share links.
type LinkRepository interface {
	Create(link *model.ShareLink) error
	FindByToken(token string) (*model.ShareLink, error)
	Save(link *model.ShareLink) error
	Delete(link *model.ShareLink) error

	// IncrementClicks applies the successful-access mutation as one atomic
	// update: bump click_count, stamp access times and last IP. It refuses
	// the increment when the click cap is already consumed, so concurrent
	// requests racing toward the limit cannot overshoot it.
	IncrementClicks(link *model.ShareLink, now time.Time, ip string) (bool, error)

	FindExpired(now time.Time) ([]model.ShareLink, error)
	DeleteByIDs(ids []string) (int64, error)
	DeleteRevoked(cutoff *time.Time) (int64, error)
}

// GormLinkRepository implements LinkRepository on a gorm connection.
type GormLinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository builds a gorm-backed repository.
func NewLinkRepository(db *gorm.DB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

func (r *GormLinkRepository) Create(link *model.ShareLink) error {
	err := r.db.Create(link).Error
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicateToken
	}
	return err
}

func (r *GormLinkRepository) FindByToken(token string) (*model.ShareLink, error) {
	var link model.ShareLink
	err := r.db.Where("token = ?", token).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *GormLinkRepository) Save(link *model.ShareLink) error {
	return r.db.Save(link).Error
}

func (r *GormLinkRepository) Delete(link *model.ShareLink) error {
	return r.db.Delete(link).Error
}

func (r *GormLinkRepository) IncrementClicks(link *model.ShareLink, now time.Time, ip string) (bool, error) {
	res := r.db.Model(&model.ShareLink{}).
		Where("id = ? AND revoked_at IS NULL AND (max_clicks IS NULL OR click_count < max_clicks)", link.ID).
		Updates(map[string]interface{}{
			"click_count":     gorm.Expr("click_count + 1"),
			"first_access_at": gorm.Expr("COALESCE(first_access_at, ?)", now),
			"last_access_at":  now,
			"last_ip":         ip,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	link.ClickCount++
	if link.FirstAccessAt == nil {
		t := now
		link.FirstAccessAt = &t
	}
	t := now
	link.LastAccessAt = &t
	link.LastIP = ip
	return true, nil
}

func (r *GormLinkRepository) FindExpired(now time.Time) ([]model.ShareLink, error) {
	var links []model.ShareLink
	err := r.db.
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *GormLinkRepository) DeleteByIDs(ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.Where("id IN ?", ids).Delete(&model.ShareLink{})
	return res.RowsAffected, res.Error
}

func (r *GormLinkRepository) DeleteRevoked(cutoff *time.Time) (int64, error) {
	query := r.db.Where("revoked_at IS NOT NULL")
	if cutoff != nil {
		query = query.Where("revoked_at < ?", *cutoff)
	}
	res := query.Delete(&model.ShareLink{})
	return res.RowsAffected, res.Error
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate entry")
}
