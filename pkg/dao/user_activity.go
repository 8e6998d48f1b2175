package dao

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-kit/log"

	"github.com/grafana/cqlstore/pkg/cql"
)

const UserActivityTable = "user_activity"

var (
	// UserActivityFields are the columns of user_activity, in insert order.
	UserActivityFields = []string{"pid", "uid", "day", "moneySpent"}
	// UserActivityKey identifies a row of user_activity.
	UserActivityKey = []string{"pid", "uid"}
)

// UserActivity is the amount of money a user spent on a product on a day.
type UserActivity struct {
	PID        string
	UID        string
	Day        time.Time
	MoneySpent float64
}

func (u UserActivity) Columns() map[string]interface{} {
	return map[string]interface{}{
		"pid":        u.PID,
		"uid":        u.UID,
		"day":        u.Day,
		"moneyspent": u.MoneySpent,
	}
}

// UserActivityFromRow reads a row of user_activity. Columns the row does not
// have are left to their zero value.
func UserActivityFromRow(r cql.Row) (UserActivity, error) {
	var (
		u   UserActivity
		err error
	)
	if u.PID, err = column[string](r, "pid"); err != nil {
		return u, err
	}
	if u.UID, err = column[string](r, "uid"); err != nil {
		return u, err
	}
	if u.Day, err = column[time.Time](r, "day"); err != nil {
		return u, err
	}
	if u.MoneySpent, err = column[float64](r, "moneySpent"); err != nil {
		return u, err
	}
	return u, nil
}

func column[V any](r cql.Row, name string) (V, error) {
	var zero V
	v, ok := r.Get(name)
	if !ok || v == nil {
		return zero, nil
	}
	typed, ok := v.(V)
	if !ok {
		return zero, fmt.Errorf("column %s: unexpected type %T", name, v)
	}
	return typed, nil
}

type UserActivityDAO struct {
	*DAO[UserActivity]
}

func NewUserActivityDAO(exec *cql.Executor, logger log.Logger) *UserActivityDAO {
	return &UserActivityDAO{New(exec, UserActivityTable, UserActivityFromRow, logger)}
}

// Save upserts every column of the activities.
func (d *UserActivityDAO) Save(ctx context.Context, activities ...UserActivity) (int, error) {
	return d.Upsert(ctx, activities, UserActivityFields...)
}

// Remove deletes the activities with the same product and user.
func (d *UserActivityDAO) Remove(ctx context.Context, activities ...UserActivity) (int, error) {
	return d.Delete(ctx, activities, UserActivityKey...)
}

// ListByDay returns every activity, oldest day first.
func (d *UserActivityDAO) ListByDay(ctx context.Context) ([]UserActivity, error) {
	activities, err := d.Select(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Day.Before(activities[j].Day)
	})
	return activities, nil
}
