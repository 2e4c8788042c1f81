package db

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver registered by this package. It wraps
// the stock sqlite3 driver with a ConnectHook that installs the store-side
// access function on every new connection.
const DriverName = "sqlite3_sqlzibar"

// AccessFnName is the SQL function deployed on every connection. SQL can call
//
//	fn_is_resource_accessible(resourceId, principalsCsv, permissionId, resourceTypeId, at)
//
// and receives 1 when the resource is in the principal set's downward
// closure for the permission, 0 otherwise. resourceTypeId may be '' for
// no type scoping.
const AccessFnName = "fn_is_resource_accessible"

// AccessProbe evaluates a single-resource accessibility check. The repository
// layer supplies the implementation, which owns the SQL and the read pool it
// runs against.
type AccessProbe func(resourceID, principalsCSV, permissionID, resourceTypeID, at string) (bool, error)

var (
	driverOnce  sync.Once
	accessProbe atomic.Pointer[AccessProbe]
)

func ensureDriver() {
	driverOnce.Do(func() {
		sql.Register(DriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc(AccessFnName, isResourceAccessibleFn, false)
			},
		})
	})
}

// BindAccessFunction points the store-side function at probe. Until bound,
// any SQL that calls the function fails rather than silently denying. The
// probe must not run on the pool executing the calling statement: SQLite
// invokes the function while that connection is busy.
func BindAccessFunction(probe AccessProbe) {
	accessProbe.Store(&probe)
}

func isResourceAccessibleFn(resourceID, principalsCSV, permissionID, resourceTypeID, at string) (int64, error) {
	p := accessProbe.Load()
	if p == nil {
		return 0, fmt.Errorf("%s is not bound; call db.BindAccessFunction during startup", AccessFnName)
	}
	ok, err := (*p)(resourceID, principalsCSV, permissionID, resourceTypeID, at)
	if err != nil {
		return 0, err
	}
	if ok {
		return 1, nil
	}
	return 0, nil
}
