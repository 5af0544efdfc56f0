package server

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"trade-closeout/internal/apiclient"
	"trade-closeout/internal/config"
	"trade-closeout/internal/database"
	"trade-closeout/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	adminLogin      = "admin@trade.local"
	adminPassword   = "Admin123!"
	clientLogin     = "client@trade.local"
	clientPassword  = "Client123!"
	contractorLogin = "contractor@trade.local"
	contractorPass  = "Contractor123!"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testEnv — сервер на sqlite в памяти и клиенты API для трёх ролей.
type testEnv struct {
	srv *httptest.Server

	admin      *apiclient.Client
	client     *apiclient.Client
	contractor *apiclient.Client

	clientUser     models.User
	contractorUser models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Setup(db))

	cfg := &config.Config{
		SessionSecret: "test-session-secret",
		JWTSecret:     "test-jwt-secret",
		TokenTTL:      time.Hour,
	}
	srv := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(srv.Close)

	env := &testEnv{srv: srv}
	env.admin, _ = env.login(t, adminLogin, adminPassword)
	env.client, env.clientUser = env.login(t, clientLogin, clientPassword)
	env.contractor, env.contractorUser = env.login(t, contractorLogin, contractorPass)
	return env
}

func (e *testEnv) login(t *testing.T, username, password string) (*apiclient.Client, models.User) {
	t.Helper()
	c := apiclient.New(e.srv.URL, "")
	resp, err := c.Login(context.Background(), username, password)
	require.NoError(t, err)
	return c, resp.User
}

// newTrade заводит трейд от имени админа; amount > 0 — с черновиком счёта.
func (e *testEnv) newTrade(t *testing.T, amount float64) models.Trade {
	t.Helper()
	due := time.Now().Add(10 * 24 * time.Hour)
	trade, err := e.admin.CreateTrade(context.Background(), models.CreateTradeRequest{
		ProjectID:      1,
		Title:          "Сантехника",
		ClientID:       e.clientUser.ID,
		ContractorID:   e.contractorUser.ID,
		InvoiceAmount:  amount,
		InvoiceDueDate: &due,
	})
	require.NoError(t, err)
	return *trade
}

// setStatus двигает трейд в нужный статус в обход API.
func setStatus(t *testing.T, tradeID uint, status models.CompletionStatus, progress int) {
	t.Helper()
	err := database.DB.Model(&models.Trade{}).Where("id = ?", tradeID).
		Updates(map[string]any{"completion_status": status, "progress": progress}).Error
	require.NoError(t, err)
}
