package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/item/pkg/middleware"
)

// Server はアイテムサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。NewServerで開いた場合のみ設定される。
	db *sql.DB
	// service はアイテム操作のビジネスロジック。
	service *Service
	// validator はリクエストボディの検証を行う。
	validator *requestValidator
	// verifier はBearerトークンを検証する。
	verifier middleware.Verifier
	// cfg はサービスの設定。
	cfg Config
}

// NewServer は新しいアイテムサーバーを生成する。
// SQLiteデータベースを開き、マイグレーションを適用する。
func NewServer(cfg Config) (*Server, error) {
	db, err := OpenDB(context.Background(), cfg.DBPath)
	if err != nil {
		return nil, err
	}

	s, err := New(NewSQLiteStore(db), cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.db = db
	return s, nil
}

// New は指定されたストアを使うアイテムサーバーを生成する。
func New(store Store, cfg Config) (*Server, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	rv, err := newRequestValidator(time.Now, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("バリデーターの初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(middleware.CORS(cfg.AllowedOrigins))
	}

	s := &Server{
		router:    router,
		port:      cfg.Port,
		service:   NewService(store),
		validator: rv,
		verifier:  middleware.NewJWTVerifier(cfg.JWTSecret),
		cfg:       cfg,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Handler はHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	readers := middleware.RequireRoles(s.verifier, middleware.RoleAdmin, middleware.RoleRegular)
	admins := middleware.RequireRoles(s.verifier, middleware.RoleAdmin)

	items := s.router.Group("/items")
	{
		// アイテム一覧取得（クエリによる絞り込み）
		items.GET("", readers, s.handleList())
		// アイテム詳細取得
		items.GET("/:id", readers, s.handleGetByID())
		// アイテムの変更履歴取得
		items.GET("/:id/events", readers, s.handleListEvents())
		// アイテム作成
		items.POST("", admins, s.handleCreate())
		// アイテム更新
		items.PUT("/:id", admins, s.handleUpdate())
		// アイテム削除
		items.DELETE("/:id", admins, s.handleDelete())
	}

	if s.cfg.DevTokenEnabled {
		// 開発用トークン発行
		s.router.POST("/auth/dev-token", s.handleDevToken())
	}

	s.router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Welcome to the Database.")
	})

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "item"})
	})

	s.router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Route not found.")
	})
}

// actorOf はリクエストを行ったユーザーのIDを返す。
func actorOf(c *gin.Context) string {
	p, _ := middleware.GetPrincipal(c)
	return p.UserID
}

// parseID はパスパラメータのIDを整数に変換する。変換できない場合は400を返してfalseを返す。
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "IDは整数で指定してください", "id": c.Param("id")})
		return 0, false
	}
	return id, true
}

// respondError はサービスのエラーをHTTPレスポンスに変換する。
// 想定外のエラーは原因をログに記録し、呼び出し元には汎用メッセージのみを返す。
func respondError(c *gin.Context, err error, internalMsg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNotFound.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalMsg})
		p, _ := middleware.PrincipalFromContext(c.Request.Context())
		log.Printf("%s request_id=%s user=%s: %v", internalMsg, middleware.GetRequestID(c), p.UserID, err)
	}
}

// bindItemRequest はリクエストボディをデコードして検証する。失敗した場合は400を返してfalseを返す。
func (s *Server) bindItemRequest(c *gin.Context) (itemRequest, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストの読み込みに失敗しました: %v", err)})
		return itemRequest{}, false
	}
	req, err := decodeItemRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
		return itemRequest{}, false
	}

	if err := s.validator.Validate(req); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です", "fields": verr.Fields})
			return itemRequest{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "リクエストの検証に失敗しました"})
		log.Printf("リクエスト検証エラー: %v", err)
		return itemRequest{}, false
	}
	return req, true
}

// handleList はアイテム一覧取得を処理するハンドラを返す。
// 既知のクエリパラメータのみを受け付け、すべての条件を満たすアイテムを返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		filter, err := ParseQuery(query, s.cfg.Location)
		var qerr *QueryError
		if errors.As(err, &qerr) {
			body := gin.H{
				"error":        "クエリパラメータが不正です",
				"invalid_keys": qerr.InvalidKeys,
				"valid_keys":   qerr.ValidKeys,
			}
			if len(qerr.Fields) > 0 {
				body["fields"] = qerr.Fields
			}
			c.JSON(http.StatusBadRequest, body)
			return
		}

		items, err := s.service.List(c.Request.Context(), filter)
		switch {
		case errors.Is(err, ErrEmpty):
			c.JSON(http.StatusNotFound, gin.H{"error": ErrEmpty.Error()})
			return
		case errors.Is(err, ErrNoMatch):
			echo := make(map[string]string, len(query))
			for k := range query {
				echo[k] = query.Get(k)
			}
			c.JSON(http.StatusNotFound, gin.H{"error": ErrNoMatch.Error(), "query": echo})
			return
		case err != nil:
			respondError(c, err, "アイテム一覧の取得に失敗しました")
			return
		}

		c.JSON(http.StatusOK, items)
	}
}

// handleGetByID はアイテム詳細取得を処理するハンドラを返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		it, err := s.service.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err, "アイテムの取得に失敗しました")
			return
		}

		c.JSON(http.StatusOK, it)
	}
}

// handleCreate はアイテム作成を処理するハンドラを返す。
// IDはサーバーが採番し、リクエストボディのidは無視する。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := s.bindItemRequest(c)
		if !ok {
			return
		}

		created, err := s.service.Create(c.Request.Context(), req.toItem(s.cfg.Location), actorOf(c))
		if err != nil {
			respondError(c, err, "アイテムの作成に失敗しました")
			return
		}

		c.JSON(http.StatusCreated, created)
	}
}

// handleUpdate はアイテム更新を処理するハンドラを返す。
// 指定されたフィールドのみを既存のアイテムにマージする。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		req, ok := s.bindItemRequest(c)
		if !ok {
			return
		}

		updated, err := s.service.Update(c.Request.Context(), id, req.toPatch(s.cfg.Location), actorOf(c))
		if err != nil {
			respondError(c, err, "アイテムの更新に失敗しました")
			return
		}

		c.JSON(http.StatusOK, updated)
	}
}

// handleDelete はアイテム削除を処理するハンドラを返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		if err := s.service.Delete(c.Request.Context(), id, actorOf(c)); err != nil {
			respondError(c, err, "アイテムの削除に失敗しました")
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// handleListEvents はアイテムの変更履歴取得を処理するハンドラを返す。
func (s *Server) handleListEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		events, err := s.service.Events(c.Request.Context(), id)
		if err != nil {
			respondError(c, err, "変更履歴の取得に失敗しました")
			return
		}

		c.JSON(http.StatusOK, events)
	}
}

// devTokenRequest は開発用トークン発行リクエストのJSON構造。
type devTokenRequest struct {
	// UserID はトークンに含めるユーザーID。
	UserID string `json:"user_id" binding:"required"`
	// Role はトークンに含めるロール。
	Role string `json:"role" binding:"required,oneof=admin regular"`
}

// handleDevToken は開発用JWTトークンを発行するハンドラを返す。
// DEV_TOKEN_ENABLED=true の場合のみルーティングされる。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		token, err := middleware.GenerateJWT(s.cfg.JWTSecret, req.UserID, middleware.Role(req.Role))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの生成に失敗しました"})
			log.Printf("トークン生成エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token, "user_id": req.UserID, "role": req.Role})
	}
}
