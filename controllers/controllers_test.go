package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-floor-sync/database"
	"github.com/yeremiapane/restaurant-floor-sync/models"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
	"github.com/yeremiapane/restaurant-floor-sync/router"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
)

type response struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// setupTestDB -> SQLite in-memory terpisah per test
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	utils.InitLogger()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func setupRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return router.SetupRouter(db, router.Options{})
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

// outboxKinds -> urutan kind di db_changes
func outboxKinds(t *testing.T, db *gorm.DB) []protocol.EventKind {
	t.Helper()
	var changes []models.DBChange
	require.NoError(t, db.Order("id ASC").Find(&changes).Error)
	kinds := make([]protocol.EventKind, 0, len(changes))
	for _, change := range changes {
		msg, err := change.Message()
		require.NoError(t, err)
		kinds = append(kinds, msg.Kind)
	}
	return kinds
}

func seedTable(t *testing.T, db *gorm.DB, number string) models.Table {
	table := models.Table{TableNumber: number, Status: models.TableAvailable}
	require.NoError(t, db.Create(&table).Error)
	return table
}

func seedMenu(t *testing.T, db *gorm.DB, name string, price float64) models.Menu {
	menu := models.Menu{Name: name, Price: price}
	require.NoError(t, db.Create(&menu).Error)
	return menu
}

func seedUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	user := models.User{Name: name, Email: name + "@resto.test", Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}
