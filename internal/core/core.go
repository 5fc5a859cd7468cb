package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jdholdren/karmabot/internal/core/models"
)

// ListLimit is how many rows the top and bottom listings return
const ListLimit = 3

// Store is the persistence the core needs; satisfied by db.DB
type Store interface {
	FindByName(ctx context.Context, name string) (models.UserKarma, bool, error)
	Insert(ctx context.Context, name string) (models.UserKarma, error)
	UpdateKarma(ctx context.Context, id, karma int64) error
	ListTop(ctx context.Context, n int) ([]models.UserKarma, error)
	ListBottom(ctx context.Context, n int) ([]models.UserKarma, error)
}

type Core struct {
	db Store
	l  *zap.SugaredLogger
}

func New(db Store, l *zap.SugaredLogger) Core {
	return Core{
		db: db,
		l:  l,
	}
}

// ParseToken reads a run of repeated '+' or '-' characters. The magnitude is one
// less than the run length, so "++" is worth 1 and "+++" is worth 2.
func ParseToken(token string) (int64, models.Direction) {
	dir := models.Increased
	if len(token) > 0 && token[0] == '-' {
		dir = models.Decreased
	}

	return int64(len(token) - 1), dir
}

// ApplyKarma moves the karma of name by the amount the token encodes, creating
// the user at zero if they have not been seen before.
//
// Storage failures are logged and the computed change is still returned, so the
// caller confirms it even when the write did not land.
func (c Core) ApplyKarma(ctx context.Context, name, token string) models.KarmaChange {
	magnitude, dir := ParseToken(token)
	delta := magnitude
	if dir == models.Decreased {
		delta = -magnitude
	}

	u, found, err := c.db.FindByName(ctx, name)
	if err != nil {
		c.l.Errorw("error looking up user", "name", name, "err", err)
	}

	if !found {
		u, err = c.db.Insert(ctx, name)
		if err != nil {
			c.l.Errorw("error creating user", "name", name, "err", err)
			return models.KarmaChange{Name: name, Karma: delta, Direction: dir}
		}
	}

	newKarma := u.Karma + delta
	if err := c.db.UpdateKarma(ctx, u.ID, newKarma); err != nil {
		c.l.Errorw("error updating user karma", "name", name, "id", u.ID, "err", err)
	}

	return models.KarmaChange{Name: name, Karma: newKarma, Direction: dir}
}

// ListKarma returns a heading and the rows for a listing. The modifier is "top",
// "bottom" or a nickname; an unknown nickname yields a single row with zero karma.
func (c Core) ListKarma(ctx context.Context, modifier string) (string, []models.UserKarma, error) {
	switch modifier {
	case "top":
		us, err := c.db.ListTop(ctx, ListLimit)
		if err != nil {
			return "", nil, fmt.Errorf("error listing top karma: %w", err)
		}
		return "Top karma:", orPlaceholder(us, modifier), nil
	case "bottom":
		us, err := c.db.ListBottom(ctx, ListLimit)
		if err != nil {
			return "", nil, fmt.Errorf("error listing bottom karma: %w", err)
		}
		return "Bottom karma:", orPlaceholder(us, modifier), nil
	}

	u, found, err := c.db.FindByName(ctx, modifier)
	if err != nil {
		return "", nil, fmt.Errorf("error getting karma for %q: %w", modifier, err)
	}
	if !found {
		return "", orPlaceholder(nil, modifier), nil
	}

	return "", []models.UserKarma{u}, nil
}

// An empty result is replaced by one zero row named after the modifier
func orPlaceholder(us []models.UserKarma, modifier string) []models.UserKarma {
	if len(us) > 0 {
		return us
	}
	return []models.UserKarma{{Name: modifier}}
}
