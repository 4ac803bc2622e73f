package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/learning-api/internal/apperr"
	"github.com/iliyamo/learning-api/internal/handler"
	"github.com/iliyamo/learning-api/internal/model"
	"github.com/iliyamo/learning-api/internal/queue"
	"github.com/iliyamo/learning-api/internal/router"
	"github.com/iliyamo/learning-api/internal/service"
	"github.com/iliyamo/learning-api/internal/testutil/memstore"
	"github.com/iliyamo/learning-api/internal/utils"
)

const (
	masterEmail    = "master@example.com"
	masterPassword = "MasterPass1"
)

type notifier struct {
	mu     sync.Mutex
	events []queue.PasswordResetRequested
}

func (n *notifier) NotifyPasswordReset(_ context.Context, ev queue.PasswordResetRequested) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

type harness struct {
	t       *testing.T
	e       *echo.Echo
	store   *memstore.Store
	content *content
	catalog *catalog
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  []apperr.FieldError `json:"errors"`
	Count   *int                `json:"count"`
	Details string              `json:"details"`
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.New()
	logger, _ := test.NewNullLogger()
	iss, err := utils.NewIssuer([]byte("app-test-secret"), 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	hasher := utils.NewBcryptHasher(4)

	auth, err := service.NewAuthService(store.Repositories(), store, iss, hasher, &notifier{},
		service.AuthOptions{ResetTTL: time.Hour, ExposeResetToken: true}, logger, nil)
	require.NoError(t, err)
	access := service.NewAccessChecker(store.Grants(), nil)

	seeder := service.Seeder{Users: store.Users(), Products: store.Products(), Hasher: hasher, Log: logger}
	_, err = seeder.EnsureMasterAdmin(context.Background(), masterEmail, masterPassword)
	require.NoError(t, err)

	cont := newContent()
	cat := &catalog{products: store.Products(), topics: map[string][]model.Topic{}}
	deps := router.Deps{
		Verifier: iss,
		Access:   access,
		Auth:     handler.NewAuthHandler(auth, time.Second),
		Users: &handler.UserHandler{
			Users: store.Users(), Learner: newLearner(), Content: cont, Topics: cat, Access: access, Log: logger,
		},
		Products: &handler.ProductHandler{Catalog: cat, Content: cont},
		Admin: &handler.AdminHandler{
			Users: store.Users(), Grants: store.Grants(), Products: store.Products(), Log: logger,
		},
	}
	return &harness{t: t, e: NewEcho(logger, false, nil, deps), store: store, content: cont, catalog: cat}
}

func (h *harness) do(method, path string, body any, token string) (int, envelope) {
	h.t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type tokens struct {
	User         model.SafeUser `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

func (h *harness) register(name, email string) tokens {
	h.t.Helper()
	code, env := h.do(http.MethodPost, "/api/v1/auth/register",
		map[string]string{"name": name, "email": email, "password": "Password1"}, "")
	require.Equal(h.t, http.StatusCreated, code, env.Message)
	return decode[tokens](h.t, env.Data)
}

func (h *harness) login(email, password string) tokens {
	h.t.Helper()
	code, env := h.do(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": email, "password": password}, "")
	require.Equal(h.t, http.StatusOK, code, env.Message)
	return decode[tokens](h.t, env.Data)
}

func (h *harness) product(master string, slug string) string {
	h.t.Helper()
	code, env := h.do(http.MethodPost, "/api/v1/admin/products",
		map[string]string{"name": slug, "slug": slug}, master)
	require.Equal(h.t, http.StatusCreated, code, env.Message)
	return decode[model.Product](h.t, env.Data).ID
}

func TestAuthFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	reg := h.register("Ada", "Ada@Example.com")
	assert.Equal(t, "ada@example.com", reg.User.Email)
	assert.Equal(t, model.RoleUser, reg.User.Role)
	assert.NotEmpty(t, reg.AccessToken)

	code, env := h.do(http.MethodPost, "/api/v1/auth/register",
		map[string]string{"name": "Ada", "email": "ada@example.com", "password": "Password1"}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "User already exists", env.Message)
	assert.False(t, env.Success)

	for _, creds := range []map[string]string{
		{"email": "ada@example.com", "password": "wrong-password"},
		{"email": "nobody@example.com", "password": "Password1"},
	} {
		code, env = h.do(http.MethodPost, "/api/v1/auth/login", creds, "")
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "Invalid credentials", env.Message)
	}

	login := h.login("ada@example.com", "Password1")

	code, env = h.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refreshToken": login.RefreshToken}, "")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, decode[tokens](t, env.Data).AccessToken)

	code, _ = h.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refreshToken": login.AccessToken}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, env = h.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Refresh token required", env.Message)

	code, env = h.do(http.MethodGet, "/api/v1/users/profile", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ada", decode[model.SafeUser](t, env.Data).Name)

	code, env = h.do(http.MethodPost, "/api/v1/auth/logout", map[string]string{"refreshToken": login.RefreshToken}, login.AccessToken)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Logout successful", env.Message)
	code, _ = h.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refreshToken": login.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = h.do(http.MethodPost, "/api/v1/auth/logout", nil, login.AccessToken)
	assert.Equal(t, http.StatusOK, code, "logout without a token still succeeds")
	code, _ = h.do(http.MethodPost, "/api/v1/auth/logout", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	code, env := h.do(http.MethodPost, "/api/v1/auth/register",
		map[string]string{"name": "A", "email": "not-an-email", "password": "short"}, "")
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation error", env.Message)

	fields := map[string]string{}
	for _, f := range env.Errors {
		fields[f.Field] = f.Code
	}
	assert.Equal(t, map[string]string{"name": "min", "email": "email", "password": "min"}, fields)

	code, env = h.do(http.MethodPost, "/api/v1/auth/login", "{not json", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid JSON in request body", env.Message)
}

func TestAuthenticationRequired(t *testing.T) {
	h := newHarness(t)
	reg := h.register("Bob", "bob@example.com")

	code, env := h.do(http.MethodGet, "/api/v1/users/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Authentication required", env.Message)

	code, env = h.do(http.MethodGet, "/api/v1/users/profile", nil, reg.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid or expired token", env.Message)
}

func TestProductAccessGate(t *testing.T) {
	h := newHarness(t)
	master := h.login(masterEmail, masterPassword)
	user := h.register("Learner", "learner@example.com")
	pid := h.product(master.AccessToken, "go-basics")
	h.content.qna[pid] = []model.QnA{{ID: uuid.NewString(), Question: "What is a goroutine?"}}
	qnaPath := "/api/v1/products/" + pid + "/qna"

	code, env := h.do(http.MethodGet, qnaPath, nil, user.AccessToken)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Forbidden", env.Message)

	code, _ = h.do(http.MethodGet, "/api/v1/products/"+uuid.NewString()+"/qna", nil, user.AccessToken)
	assert.Equal(t, http.StatusForbidden, code, "unknown products look the same as ungranted ones")

	grant := map[string]string{"userId": user.User.ID, "productId": pid}
	code, _ = h.do(http.MethodPost, "/api/v1/admin/users/grant-product-access", grant, master.AccessToken)
	require.Equal(t, http.StatusCreated, code)
	code, env = h.do(http.MethodPost, "/api/v1/admin/users/grant-product-access", grant, master.AccessToken)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "User already has access to this product", env.Message)

	code, env = h.do(http.MethodGet, qnaPath+"?page=1&limit=500", nil, user.AccessToken)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)

	code, _ = h.do(http.MethodPost, "/api/v1/admin/users/revoke-product-access", grant, master.AccessToken)
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodGet, qnaPath, nil, user.AccessToken)
	assert.Equal(t, http.StatusForbidden, code, "revocation applies to the very next request")

	code, env = h.do(http.MethodPost, "/api/v1/admin/users/revoke-product-access", grant, master.AccessToken)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Product access not found", env.Message)

	code, _ = h.do(http.MethodGet, "/api/v1/products/"+uuid.NewString()+"/qna", nil, master.AccessToken)
	assert.Equal(t, http.StatusOK, code, "admins bypass grants")

	code, env = h.do(http.MethodGet, qnaPath+"?page=zero", nil, master.AccessToken)
	assert.Equal(t, http.StatusBadRequest, code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "page", env.Errors[0].Field)
}

func TestQuizSubmit(t *testing.T) {
	h := newHarness(t)
	master := h.login(masterEmail, masterPassword)
	user := h.register("Quizzer", "quiz@example.com")
	pid := h.product(master.AccessToken, "quizzes")
	other := h.product(master.AccessToken, "other")
	quizID, foreignQuiz := uuid.NewString(), uuid.NewString()
	h.content.quizzes[pid] = []model.Quiz{{
		ID: quizID, Question: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: "4", Explanation: "math",
	}}
	h.content.quizzes[other] = []model.Quiz{{ID: foreignQuiz, CorrectAnswer: "x"}}
	_, err := h.store.Grants().Grant(context.Background(), user.User.ID, pid)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+pid+"/quizzes", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+user.AccessToken)
	h.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "correctAnswer")
	assert.NotContains(t, rec.Body.String(), "math")

	submit := "/api/v1/products/" + pid + "/quizzes/"
	code, env := h.do(http.MethodPost, submit+quizID+"/submit", map[string]any{"selectedAnswer": "4", "timeTaken": 12}, user.AccessToken)
	require.Equal(t, http.StatusOK, code)
	res := decode[map[string]any](t, env.Data)
	assert.Equal(t, true, res["isCorrect"])
	assert.Equal(t, "4", res["correctAnswer"])
	assert.Equal(t, "math", res["explanation"])
	require.Len(t, h.content.attempts, 1)
	assert.Equal(t, user.User.ID, h.content.attempts[0].UserID)

	code, env = h.do(http.MethodPost, submit+foreignQuiz+"/submit", map[string]any{"selectedAnswer": "x"}, user.AccessToken)
	assert.Equal(t, http.StatusNotFound, code, "a quiz from another product is not found inside this one")
	assert.Equal(t, "Quiz not found", env.Message)
}

func TestAdminRules(t *testing.T) {
	h := newHarness(t)
	master := h.login(masterEmail, masterPassword)
	user := h.register("Plain", "plain@example.com")
	admin := h.register("Helper", "helper@example.com")

	code, _ := h.do(http.MethodGet, "/api/v1/admin/users/"+admin.User.ID+"/products", nil, user.AccessToken)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := h.do(http.MethodPut, "/api/v1/admin/users/"+admin.User.ID+"/role", map[string]string{"role": "admin"}, master.AccessToken)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.RoleAdmin, decode[model.SafeUser](t, env.Data).Role)

	code, _ = h.do(http.MethodGet, "/api/v1/admin/users/"+user.User.ID+"/products", nil, admin.AccessToken)
	assert.Equal(t, http.StatusForbidden, code, "the old access token keeps its old role")

	admin = h.login("helper@example.com", "Password1")
	code, env = h.do(http.MethodGet, "/api/v1/admin/users/"+user.User.ID+"/products", nil, admin.AccessToken)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, *env.Count)

	code, _ = h.do(http.MethodPut, "/api/v1/admin/users/"+user.User.ID+"/role", map[string]string{"role": "ADMIN"}, admin.AccessToken)
	assert.Equal(t, http.StatusForbidden, code, "only MASTER_ADMIN changes roles")
	code, _ = h.do(http.MethodPost, "/api/v1/admin/products", map[string]string{"name": "x", "slug": "x"}, admin.AccessToken)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = h.do(http.MethodPut, "/api/v1/admin/users/"+user.User.ID+"/role", map[string]string{"role": "ROOT"}, master.AccessToken)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid role", env.Message)

	code, env = h.do(http.MethodDelete, "/api/v1/admin/users/"+admin.User.ID, nil, admin.AccessToken)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Cannot delete your own account", env.Message)

	code, _ = h.do(http.MethodDelete, "/api/v1/admin/users/"+uuid.NewString(), nil, admin.AccessToken)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = h.do(http.MethodDelete, "/api/v1/admin/users/"+master.User.ID, nil, admin.AccessToken)
	assert.Equal(t, http.StatusForbidden, code, "an ADMIN cannot delete the MASTER_ADMIN")
	assert.Equal(t, "Cannot delete a user with an equal or higher role", env.Message)
	h.login(masterEmail, masterPassword)

	peer := h.register("Peer", "peer@example.com")
	code, _ = h.do(http.MethodPut, "/api/v1/admin/users/"+peer.User.ID+"/role", map[string]string{"role": "ADMIN"}, master.AccessToken)
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodDelete, "/api/v1/admin/users/"+peer.User.ID, nil, admin.AccessToken)
	assert.Equal(t, http.StatusForbidden, code, "an ADMIN cannot delete another ADMIN")
	code, _ = h.do(http.MethodDelete, "/api/v1/admin/users/"+peer.User.ID, nil, master.AccessToken)
	assert.Equal(t, http.StatusOK, code)

	code, _ = h.do(http.MethodDelete, "/api/v1/admin/users/"+user.User.ID, nil, admin.AccessToken)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, h.store.RefreshCount(user.User.ID))
	code, _ = h.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refreshToken": user.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestBatchGrant(t *testing.T) {
	h := newHarness(t)
	master := h.login(masterEmail, masterPassword)
	a := h.register("A user", "a@example.com")
	b := h.register("B user", "b@example.com")
	pid := h.product(master.AccessToken, "batch")
	missing := uuid.NewString()

	ops := map[string]any{"operations": []map[string]string{
		{"userId": a.User.ID, "productId": pid},
		{"userId": b.User.ID, "productId": missing},
		{"userId": b.User.ID, "productId": pid},
	}}
	code, env := h.do(http.MethodPost, "/api/v1/admin/batch/users/grant-product-access", ops, master.AccessToken)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Granted access: 2 successful, 1 failed", env.Message)

	type failure struct {
		Operation struct {
			ProductID string `json:"productId"`
		} `json:"operation"`
		Error string `json:"error"`
	}
	res := decode[struct {
		Successful int       `json:"successful"`
		Failed     int       `json:"failed"`
		Errors     []failure `json:"errors"`
	}](t, env.Data)
	assert.Equal(t, 2, res.Successful)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, missing, res.Errors[0].Operation.ProductID)
	assert.Equal(t, "User or product not found", res.Errors[0].Error)

	code, env = h.do(http.MethodPost, "/api/v1/admin/batch/users/revoke-product-access", ops, master.AccessToken)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Revoked access: 2 successful, 1 failed", env.Message)

	code, _ = h.do(http.MethodPost, "/api/v1/admin/batch/users/grant-product-access",
		map[string]any{"operations": []any{}}, master.AccessToken)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.register("Forgetful", "forgetful@example.com")

	code, env := h.do(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "nobody@example.com"}, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, service.ForgotPasswordMessage, env.Message)
	assert.Empty(t, env.Data)

	code, env = h.do(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "forgetful@example.com"}, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, service.ForgotPasswordMessage, env.Message)
	token := decode[map[string]string](t, env.Data)["resetToken"]
	require.Len(t, token, 64)

	code, _ = h.do(http.MethodPost, "/api/v1/auth/reset-password", map[string]string{"token": token, "newPassword": "short"}, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(http.MethodPost, "/api/v1/auth/reset-password", map[string]string{"token": token, "newPassword": "BrandNew123"}, "")
	require.Equal(t, http.StatusOK, code)
	h.login("forgetful@example.com", "BrandNew123")

	code, env = h.do(http.MethodPost, "/api/v1/auth/reset-password", map[string]string{"token": token, "newPassword": "Another123"}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid or expired reset token", env.Message)
}

func TestChangePasswordOverHTTP(t *testing.T) {
	h := newHarness(t)
	reg := h.register("Changer", "changer@example.com")

	body := map[string]string{"currentPassword": "nope-nope", "newPassword": "Changed123"}
	code, env := h.do(http.MethodPut, "/api/v1/users/change-password", body, reg.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Current password is incorrect", env.Message)

	body["currentPassword"] = "Password1"
	code, _ = h.do(http.MethodPut, "/api/v1/users/change-password", body, reg.AccessToken)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, h.store.RefreshCount(reg.User.ID))
	h.login("changer@example.com", "Changed123")
}

func TestBookmarksAndProgress(t *testing.T) {
	h := newHarness(t)
	master := h.login(masterEmail, masterPassword)
	user := h.register("Reader", "reader@example.com")
	granted := h.product(master.AccessToken, "granted")
	locked := h.product(master.AccessToken, "locked")
	openQnA, lockedQnA, topicID := uuid.NewString(), uuid.NewString(), uuid.NewString()
	h.content.qna[granted] = []model.QnA{{ID: openQnA}}
	h.content.qna[locked] = []model.QnA{{ID: lockedQnA}}
	h.catalog.topics[granted] = []model.Topic{{ID: topicID, ProductID: granted, Name: "Basics"}}
	_, err := h.store.Grants().Grant(context.Background(), user.User.ID, granted)
	require.NoError(t, err)

	code, _ := h.do(http.MethodPost, "/api/v1/users/bookmarks", map[string]string{"qnaId": openQnA}, user.AccessToken)
	require.Equal(t, http.StatusCreated, code)
	code, env := h.do(http.MethodPost, "/api/v1/users/bookmarks", map[string]string{"qnaId": openQnA}, user.AccessToken)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Already bookmarked", env.Message)

	code, env = h.do(http.MethodPost, "/api/v1/users/bookmarks", map[string]string{}, user.AccessToken)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Either qnaId or pdfId is required", env.Message)

	code, _ = h.do(http.MethodPost, "/api/v1/users/bookmarks", map[string]string{"qnaId": lockedQnA}, user.AccessToken)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = h.do(http.MethodPost, "/api/v1/users/bookmarks", map[string]string{"qnaId": uuid.NewString()}, user.AccessToken)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = h.do(http.MethodPost, "/api/v1/users/bookmarks", map[string]string{"qnaId": uuid.NewString()}, master.AccessToken)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = h.do(http.MethodGet, "/api/v1/users/bookmarks", nil, user.AccessToken)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, *env.Count)

	code, _ = h.do(http.MethodPost, "/api/v1/users/progress",
		map[string]any{"topicId": topicID, "completionPercent": 50}, user.AccessToken)
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodPost, "/api/v1/users/progress",
		map[string]any{"topicId": topicID, "completionPercent": 150}, user.AccessToken)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = h.do(http.MethodGet, "/api/v1/users/stats", nil, user.AccessToken)
	require.Equal(t, http.StatusOK, code)
	stats := decode[model.UserStats](t, env.Data)
	assert.Equal(t, 1, stats.TopicsStarted)
	assert.Equal(t, 50.0, stats.OverallProgress)
}

func TestUserBatches(t *testing.T) {
	h := newHarness(t)
	master := h.login(masterEmail, masterPassword)
	user := h.register("Batcher", "batcher@example.com")
	granted := h.product(master.AccessToken, "batch-granted")
	locked := h.product(master.AccessToken, "batch-locked")
	q1, q2, lockedQnA := uuid.NewString(), uuid.NewString(), uuid.NewString()
	topicID, lockedTopic := uuid.NewString(), uuid.NewString()
	h.content.qna[granted] = []model.QnA{{ID: q1}, {ID: q2}}
	h.content.qna[locked] = []model.QnA{{ID: lockedQnA}}
	h.catalog.topics[granted] = []model.Topic{{ID: topicID, ProductID: granted}}
	h.catalog.topics[locked] = []model.Topic{{ID: lockedTopic, ProductID: locked}}
	_, err := h.store.Grants().Grant(context.Background(), user.User.ID, granted)
	require.NoError(t, err)

	type summary struct {
		Successful int `json:"successful"`
		Failed     int `json:"failed"`
		Errors     []struct {
			Error string `json:"error"`
		} `json:"errors"`
	}

	code, env := h.do(http.MethodPost, "/api/v1/users/batch/bookmarks", map[string]any{"bookmarks": []map[string]string{
		{"qnaId": q1},
		{"qnaId": q2},
		{"qnaId": lockedQnA},
		{},
	}}, user.AccessToken)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Added 2 bookmarks, 2 failed", env.Message)
	res := decode[summary](t, env.Data)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "Forbidden", res.Errors[0].Error, "each item passes the product gate")
	assert.Equal(t, "Either qnaId or pdfId is required", res.Errors[1].Error)

	code, env = h.do(http.MethodGet, "/api/v1/users/bookmarks", nil, user.AccessToken)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, *env.Count)
	marks := decode[[]model.Bookmark](t, env.Data)

	code, env = h.do(http.MethodDelete, "/api/v1/users/batch/bookmarks",
		map[string]any{"bookmarkIds": []string{marks[0].ID, marks[1].ID}}, user.AccessToken)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Removed 2 bookmarks, 0 failed", env.Message)
	_, env = h.do(http.MethodGet, "/api/v1/users/bookmarks", nil, user.AccessToken)
	assert.Equal(t, 0, *env.Count)

	code, _ = h.do(http.MethodDelete, "/api/v1/users/batch/bookmarks",
		map[string]any{"bookmarkIds": []string{"not-a-uuid"}}, user.AccessToken)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = h.do(http.MethodPost, "/api/v1/users/batch/progress", map[string]any{"progressUpdates": []map[string]any{
		{"topicId": topicID, "completionPercent": 80},
		{"topicId": lockedTopic, "completionPercent": 10},
	}}, user.AccessToken)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Updated 1 progress records, 1 failed", env.Message)

	_, env = h.do(http.MethodGet, "/api/v1/users/stats", nil, user.AccessToken)
	assert.Equal(t, 1, decode[model.UserStats](t, env.Data).TopicsStarted)

	code, _ = h.do(http.MethodPost, "/api/v1/users/batch/progress", map[string]any{"progressUpdates": []any{}}, user.AccessToken)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServiceRoutes(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodGet, "/api/v1/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Endpoint not found", env.Message)

	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, true, health["success"])

	code, env = h.do(http.MethodGet, "/api/v1/products", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, *env.Count)
}
