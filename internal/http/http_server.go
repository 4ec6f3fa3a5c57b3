package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liberland/federated-bridge/internal/chain"
	"github.com/liberland/federated-bridge/internal/config"
	"github.com/liberland/federated-bridge/internal/types"
	log "github.com/sirupsen/logrus"
)

type HTTPServer struct {
	node   *chain.Node
	engine *gin.Engine
}

func NewHTTPServer(node *chain.Node) *HTTPServer {
	if config.AppConfig.LogLevel < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	hs := &HTTPServer{node: node, engine: gin.New()}
	hs.engine.Use(gin.Recovery())

	api := hs.engine.Group("/api/v1")
	api.POST("/extrinsics", hs.handleSubmitExtrinsic)
	api.GET("/extrinsics/:hash", hs.handleExtrinsicStatus)
	api.GET("/chain/head", hs.handleHead)
	api.GET("/chain/blocks/:number", hs.handleBlock)
	api.GET("/chain/hashes/:hash/events", hs.handleEvents)
	api.GET("/bridges/:bridge", hs.handleBridge)
	api.GET("/bridges/:bridge/receipts/:id", hs.handleReceipt)
	api.GET("/balances/:asset/:account", hs.handleBalance)
	return hs
}

func (hs *HTTPServer) Handler() http.Handler {
	return hs.engine
}

func (hs *HTTPServer) Start(ctx context.Context) {
	srv := &http.Server{
		Addr:              ":" + config.AppConfig.HTTPPort,
		Handler:           hs.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("HTTP server shutdown: %v", err)
		}
	}()

	log.Infof("HTTP server is running on port %s", config.AppConfig.HTTPPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start HTTP server: %v", err)
	}
	log.Info("HTTP server stopped")
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": data})
}

func fail(c *gin.Context, status int, code string, err error) {
	c.JSON(status, gin.H{"status": "error", "code": code, "error": err.Error()})
}

// failWith maps node errors to status codes
func failWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chain.ErrInvalidExtrinsic):
		fail(c, http.StatusBadRequest, CodeInvalidExtrinsic, err)
	case errors.Is(err, chain.ErrDuplicateNonce):
		fail(c, http.StatusConflict, CodeDuplicateNonce, err)
	case errors.Is(err, chain.ErrPoolFull):
		fail(c, http.StatusServiceUnavailable, CodePoolFull, err)
	case errors.Is(err, chain.ErrUnknownBridge):
		fail(c, http.StatusNotFound, CodeUnknownBridge, err)
	case errors.Is(err, chain.ErrBlockNotFound):
		fail(c, http.StatusNotFound, CodeBlockNotFound, err)
	case errors.Is(err, chain.ErrExtrinsicNotFound):
		fail(c, http.StatusNotFound, CodeExtrinsicNotFound, err)
	case errors.Is(err, chain.ErrNoGenesis):
		fail(c, http.StatusServiceUnavailable, CodeNoGenesis, err)
	default:
		log.Errorf("HTTP %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		fail(c, http.StatusInternalServerError, CodeInternal, err)
	}
}

func (hs *HTTPServer) handleSubmitExtrinsic(c *gin.Context) {
	var req SubmitExtrinsicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	hash, err := hs.node.SubmitExtrinsic(c.Request.Context(), req.Extrinsic)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, SubmitExtrinsicResponse{Hash: hash.Hex()})
}

func (hs *HTTPServer) handleExtrinsicStatus(c *gin.Context) {
	hash, err := types.ParseHash(c.Param("hash"))
	if err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	status, err := hs.node.ExtrinsicStatus(c.Request.Context(), hash)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, status)
}

func (hs *HTTPServer) handleHead(c *gin.Context) {
	if _, err := hs.node.GenesisHash(c.Request.Context()); err != nil {
		failWith(c, err)
		return
	}
	ok(c, hs.node.Head())
}

func (hs *HTTPServer) handleBlock(c *gin.Context) {
	number, err := strconv.ParseUint(c.Param("number"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	block, err := hs.node.Block(c.Request.Context(), number)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, block)
}

func (hs *HTTPServer) handleEvents(c *gin.Context) {
	hash, err := types.ParseHash(c.Param("hash"))
	if err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	events, err := hs.node.Events(c.Request.Context(), hash)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, events)
}

func (hs *HTTPServer) handleBridge(c *gin.Context) {
	bridgeId, err := types.ParseBridgeId(c.Param("bridge"))
	if err != nil {
		fail(c, http.StatusNotFound, CodeUnknownBridge, err)
		return
	}
	view, err := hs.node.Bridge(c.Request.Context(), bridgeId)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, view)
}

func (hs *HTTPServer) handleReceipt(c *gin.Context) {
	bridgeId, err := types.ParseBridgeId(c.Param("bridge"))
	if err != nil {
		fail(c, http.StatusNotFound, CodeUnknownBridge, err)
		return
	}
	id, err := types.ParseReceiptId(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	view, err := hs.node.IncomingReceipt(c.Request.Context(), bridgeId, id)
	if err != nil {
		failWith(c, err)
		return
	}
	if view == nil {
		fail(c, http.StatusNotFound, CodeNotFound, errors.New("receipt not found"))
		return
	}
	ok(c, view)
}

func (hs *HTTPServer) handleBalance(c *gin.Context) {
	asset, err := types.ParseBridgeId(c.Param("asset"))
	if err != nil {
		fail(c, http.StatusNotFound, CodeUnknownBridge, err)
		return
	}
	account, err := types.ParseAccountId(c.Param("account"))
	if err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	free, err := hs.node.Balance(c.Request.Context(), asset.String(), account)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, BalanceResponse{Asset: asset.String(), Account: account.Hex(), Free: free.String()})
}
