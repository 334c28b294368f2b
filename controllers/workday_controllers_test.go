package controllers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-floor-sync/models"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
)

func TestWorkdayLifecycle(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	chef := seedUser(t, db, "budi", models.RoleChef)

	code, _ := doJSON(t, r, http.MethodPost, "/workdays/end", nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = doJSON(t, r, http.MethodPost, "/workdays/join", map[string]uint{"user_id": chef.ID})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = doJSON(t, r, http.MethodPost, "/workdays/start", nil)
	require.Equal(t, http.StatusCreated, code)
	code, _ = doJSON(t, r, http.MethodPost, "/workdays/start", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, resp := doJSON(t, r, http.MethodPost, "/workdays/join", map[string]uint{"user_id": chef.ID})
	require.Equal(t, http.StatusOK, code)
	var worker models.WorkdayWorker
	require.NoError(t, json.Unmarshal(resp.Data, &worker))
	assert.Equal(t, "budi", worker.User.Name)

	// join ulang tidak membuat baris baru
	code, _ = doJSON(t, r, http.MethodPost, "/workdays/join", map[string]uint{"user_id": chef.ID})
	assert.Equal(t, http.StatusOK, code)
	code, _ = doJSON(t, r, http.MethodPost, "/workdays/join", map[string]uint{"user_id": 404})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = doJSON(t, r, http.MethodPost, "/workdays/end", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = doJSON(t, r, http.MethodGet, "/workdays", nil)
	require.Equal(t, http.StatusOK, code)
	var workdays []models.Workday
	require.NoError(t, json.Unmarshal(resp.Data, &workdays))
	require.Len(t, workdays, 1)
	assert.False(t, workdays[0].Active())
	require.Len(t, workdays[0].Workers, 1)
	assert.Equal(t, chef.ID, workdays[0].Workers[0].UserID)

	assert.Equal(t, []protocol.EventKind{
		protocol.KindWorkdayStarted,
		protocol.KindRoleChanged,
		protocol.KindWorkdayEnded,
	}, outboxKinds(t, db))
}
