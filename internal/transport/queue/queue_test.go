package queue_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainagent "github.com/alanyang/agent-queue/internal/domain/agent"
	"github.com/alanyang/agent-queue/internal/mocks"
	queuesvc "github.com/alanyang/agent-queue/internal/service/queue"
	transportqueue "github.com/alanyang/agent-queue/internal/transport/queue"
)

func init() { gin.SetMode(gin.TestMode) }

func setup(t *testing.T, roster ...domainagent.Agent) (*gin.Engine, *queuesvc.Coordinator, *mocks.MockStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	locker := mocks.NewMockLocker(ctrl)
	notifier := mocks.NewMockRosterNotifier(ctrl)

	locker.EXPECT().WithLock(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ int64, fn func(context.Context) error) error {
			return fn(ctx)
		}).AnyTimes()
	notifier.EXPECT().Broadcast(gomock.Any(), gomock.Any()).AnyTimes()
	store.EXPECT().FetchAll(gomock.Any()).Return(roster, nil)

	svc := queuesvc.NewCoordinator(store, locker, notifier,
		queuesvc.WithClock(func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }),
		queuesvc.WithContactGenerator(func() string { return "(11) 91234-5678" }))
	require.NoError(t, svc.Load(context.Background()))

	r := gin.New()
	transportqueue.Register(r.Group("/queue"), svc)
	return r, svc, store
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func queued(id int64, name string, pos int) domainagent.Agent {
	return domainagent.Agent{ID: id, Name: name, Available: true, QueuePosition: pos}
}

func TestCallNext(t *testing.T) {
	r, _, store := setup(t, queued(1, "Ana", 1), queued(2, "Bruno", 2))
	store.EXPECT().UpsertMany(gomock.Any(), gomock.Any()).Return(nil)

	w := post(r, "/queue/next", `{"cliente_nome":"Roberto"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cliente_numero":"(11) 91234-5678"`)
	assert.Contains(t, w.Body.String(), `"outcome":"persisted"`)
}

func TestCallNext_Errors(t *testing.T) {
	tests := []struct {
		name     string
		roster   []domainagent.Agent
		body     string
		wantCode int
	}{
		{name: "empty queue", body: `{"cliente_nome":"Roberto"}`, wantCode: http.StatusConflict},
		{name: "missing client name", roster: []domainagent.Agent{queued(1, "Ana", 1)}, body: `{}`, wantCode: http.StatusBadRequest},
		{name: "malformed json", body: `{`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := setup(t, tt.roster...)
			assert.Equal(t, tt.wantCode, post(r, "/queue/next", tt.body).Code)
		})
	}
}

func TestReorder(t *testing.T) {
	r, svc, store := setup(t, queued(1, "Ana", 1), queued(2, "Bruno", 2), queued(3, "Carla", 3))
	store.EXPECT().UpsertMany(gomock.Any(), gomock.Len(3)).Return(nil)

	w := post(r, "/queue/reorder", `{"active_id":1,"over_id":3}`)
	assert.Equal(t, http.StatusOK, w.Code)

	q := svc.Snapshot().Queued
	require.Len(t, q, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{q[0].ID, q[1].ID, q[2].ID})

	assert.Equal(t, http.StatusBadRequest, post(r, "/queue/reorder", `{"active_id":1}`).Code)
	assert.Equal(t, http.StatusNotFound, post(r, "/queue/reorder", `{"active_id":1,"over_id":99}`).Code)
}

func TestRefresh(t *testing.T) {
	r, svc, store := setup(t, queued(1, "Ana", 1))
	store.EXPECT().FetchAll(gomock.Any()).Return([]domainagent.Agent{queued(1, "Ana", 1), queued(2, "Bruno", 2)}, nil)

	w := post(r, "/queue/refresh", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, svc.Snapshot().Queued, 2)

	store.EXPECT().FetchAll(gomock.Any()).Return(nil, domainagent.ErrStoreUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, post(r, "/queue/refresh", "").Code)
}
