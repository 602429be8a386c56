package displayid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/handmade_shop/internal/events"
	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/internal/schema"
	pkgdb "github.com/Skotchmaster/handmade_shop/pkg/db"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

var errConflict = errors.New("order already has a display id")

type Assignment struct {
	OrderID   string `json:"orderId"`
	DisplayID string `json:"displayOrderId"`
}

type Result struct {
	Assigned []Assignment `json:"assigned"`
	Counters map[int]int  `json:"counters"`
}

// Allocator backfills display ids. It must never run on the order read path.
type Allocator struct {
	DB     *gorm.DB
	Events events.Publisher
	Now    func() time.Time
}

func NewAllocator(db *gorm.DB, pub events.Publisher) *Allocator {
	return &Allocator{DB: db, Events: pub, Now: time.Now}
}

type pendingOrder struct {
	ID        string           `gorm:"column:id"`
	CreatedAt models.Timestamp `gorm:"column:created_at"`
}

// Pending counts orders still waiting for a display id.
func (a *Allocator) Pending(ctx context.Context) (int, error) {
	if err := schema.EnsureDisplayIDSchema(ctx, a.DB); err != nil {
		return 0, err
	}
	rows, err := scanPending(ctx, a.DB)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Backfill gives every order without a display id the next number for its
// creation year, oldest first. Counters and ids are written in one exclusive
// transaction; any failure rolls back all of it.
func (a *Allocator) Backfill(ctx context.Context) (Result, error) {
	l := logging.FromContext(ctx).With("component", "displayid")

	if err := schema.EnsureDisplayIDSchema(ctx, a.DB); err != nil {
		return Result{}, err
	}

	pending, err := scanPending(ctx, a.DB)
	if err != nil {
		return Result{}, err
	}
	if len(pending) == 0 {
		l.Debug("backfill_noop")
		return Result{}, nil
	}

	var res Result
	stage := "begin"
	err = a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stage = "lock"
		if err := lockCounters(tx); err != nil {
			return err
		}

		stage = "scan"
		rows, err := scanPending(ctx, tx)
		if err != nil {
			return err
		}

		stage = "load counters"
		var existing []models.OrderCounter
		if err := tx.Find(&existing).Error; err != nil {
			return err
		}
		counters := make(map[int]int, len(existing))
		for _, c := range existing {
			counters[c.Year] = c.Counter
		}

		stage = "assign"
		now := a.now()
		touched := make(map[int]int)
		for _, row := range rows {
			year := YearOf(row.CreatedAt.Raw, now)
			counters[year]++
			id := Format(year, counters[year])

			upd := tx.Table(models.TableOrders).
				Where("id = ? AND (display_order_id IS NULL OR display_order_id = '')", row.ID).
				Update("display_order_id", id)
			if upd.Error != nil {
				return upd.Error
			}
			if upd.RowsAffected != 1 {
				return fmt.Errorf("%w: %s", errConflict, row.ID)
			}
			touched[year] = counters[year]
			res.Assigned = append(res.Assigned, Assignment{OrderID: row.ID, DisplayID: id})
		}

		stage = "persist counters"
		for year, counter := range touched {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "year"}},
				DoUpdates: clause.AssignmentColumns([]string{"counter"}),
			}).Create(&models.OrderCounter{Year: year, Counter: counter}).Error
			if err != nil {
				return err
			}
		}
		res.Counters = touched

		stage = "commit"
		return nil
	}, txOptions(a.DB)...)
	if err != nil {
		l.Error("backfill_rolled_back", "stage", stage, "error", err)
		return Result{}, txError(stage, err)
	}

	l.Info("backfill_done", "assigned", len(res.Assigned), "years", len(res.Counters))
	a.publish(ctx, res)
	return res, nil
}

func (a *Allocator) publish(ctx context.Context, res Result) {
	if a.Events == nil || len(res.Assigned) == 0 {
		return
	}
	if err := a.Events.PublishEvent(ctx, events.TopicOrders, "", events.New(events.DisplayIDsAssigned, res)); err != nil {
		logging.FromContext(ctx).Warn("publish_failed", "event", events.DisplayIDsAssigned, "error", err)
	}
}

func (a *Allocator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// txOptions asks Postgres for serializable isolation. SQLite has a single
// writer and is serialized by lockCounters instead.
func txOptions(db *gorm.DB) []*sql.TxOptions {
	if pkgdb.IsPostgres(db) {
		return []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
	}
	return nil
}

// lockCounters takes the write lock before anything is read so two backfills
// cannot both see the same counter value.
func lockCounters(tx *gorm.DB) error {
	if pkgdb.IsPostgres(tx) {
		return tx.Exec("LOCK TABLE " + models.TableOrderCounters + " IN SHARE ROW EXCLUSIVE MODE").Error
	}
	return tx.Exec("UPDATE " + models.TableOrderCounters + " SET counter = counter").Error
}

// scanPending lists orders without a display id, oldest first. SQL ordering
// is refined by parsed time since created_at has been written in more than
// one text format; rows with unparseable timestamps go last.
func scanPending(ctx context.Context, db *gorm.DB) ([]pendingOrder, error) {
	var rows []pendingOrder
	err := db.WithContext(ctx).
		Table(models.TableOrders).
		Select("id, created_at").
		Where("display_order_id IS NULL OR display_order_id = ''").
		Order("created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("scan orders without display id: %w", err)
	}
	slices.SortStableFunc(rows, func(x, y pendingOrder) int {
		switch {
		case x.CreatedAt.Valid && y.CreatedAt.Valid:
			return x.CreatedAt.Time.Compare(y.CreatedAt.Time)
		case x.CreatedAt.Valid:
			return -1
		case y.CreatedAt.Valid:
			return 1
		default:
			return 0
		}
	})
	return rows, nil
}
