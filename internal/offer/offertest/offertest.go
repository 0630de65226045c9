// Package offertest holds fakes and database setup shared by offer tests.
package offertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrow/internal/events"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	listingdomain "github.com/smallbiznis/escrow/internal/listing/domain"
	"github.com/smallbiznis/escrow/internal/migration"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const Provider = "fake"

// NewDB opens a private in-memory database with the full schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.RunMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// NewNode returns a snowflake node for tests.
func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// Gateway records every call and fails on demand.
type Gateway struct {
	mu sync.Mutex

	PreAuthErr error
	CaptureErr error
	VoidErr    error

	PreAuths []gatewaydomain.PreAuthRequest
	Captures []gatewaydomain.CaptureRequest
	Voids    []gatewaydomain.VoidRequest

	seq int
}

func (g *Gateway) Provider() string { return Provider }

func (g *Gateway) CreatePreAuth(_ context.Context, req gatewaydomain.PreAuthRequest) (*gatewaydomain.PreAuth, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.PreAuths = append(g.PreAuths, req)
	if g.PreAuthErr != nil {
		return nil, g.PreAuthErr
	}
	g.seq++
	return &gatewaydomain.PreAuth{
		Token:         fmt.Sprintf("tok_%d", g.seq),
		TransactionID: fmt.Sprintf("txn_%d", g.seq),
	}, nil
}

func (g *Gateway) Capture(_ context.Context, req gatewaydomain.CaptureRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Captures = append(g.Captures, req)
	return g.CaptureErr
}

func (g *Gateway) Void(_ context.Context, req gatewaydomain.VoidRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Voids = append(g.Voids, req)
	return g.VoidErr
}

// SetCaptureErr swaps the capture failure under the lock.
func (g *Gateway) SetCaptureErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CaptureErr = err
}

// Counts returns the number of pre-auth, capture and void calls.
func (g *Gateway) Counts() (preAuths, captures, voids int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.PreAuths), len(g.Captures), len(g.Voids)
}

// Listings is an in-memory listing lookup.
type Listings map[snowflake.ID]listingdomain.Listing

func (l Listings) GetListing(_ context.Context, id snowflake.ID) (*listingdomain.Listing, error) {
	listing, ok := l[id]
	if !ok {
		return nil, listingdomain.ErrNotFound
	}
	return &listing, nil
}

// CountOffers returns the number of stored offers.
func CountOffers(t testing.TB, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&offerdomain.Offer{}).Count(&count).Error; err != nil {
		t.Fatalf("count offers: %v", err)
	}
	return count
}

// EventTypes returns the outbox event types stored for an offer in order.
func EventTypes(t testing.TB, db *gorm.DB, offerID snowflake.ID) []string {
	t.Helper()
	var rows []events.OfferEvent
	if err := db.Where("offer_id = ?", offerID).Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("list offer events: %v", err)
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}
