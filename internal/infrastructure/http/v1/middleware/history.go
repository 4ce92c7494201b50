package middleware

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	appctx "bfoproxy/internal/core/context"
	"bfoproxy/internal/domain/history"
)

// bodyCapture tees the response body into a buffer.
type bodyCapture struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// History records requests to paths that carry an "inn" query parameter and answer with JSON.
// It must run outside ErrorHandler so error bodies are captured too.
// The subject tax id is placed in the request context for logging.
func History(recorder *history.Service, paths ...string) gin.HandlerFunc {
	tracked := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		tracked[p] = struct{}{}
	}

	return func(c *gin.Context) {
		taxID := c.Query("inn")
		if taxID != "" {
			ctx := appctx.WithSubject(c.Request.Context(), &appctx.Subject{TaxID: taxID})
			c.Request = c.Request.WithContext(ctx)
		}

		_, ok := tracked[c.Request.URL.Path]
		if !ok || !recorder.Enabled() || taxID == "" {
			c.Next()
			return
		}

		started := time.Now().UTC()
		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture

		c.Next()

		body := capture.body.Bytes()
		if !json.Valid(body) {
			return
		}

		recorder.Record(c.Request.Context(), &history.Entry{
			TaxID: taxID,
			Request: history.RequestInfo{
				Method:    c.Request.Method,
				Path:      c.Request.URL.Path,
				ClientIP:  c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
				RequestID: c.GetString("request_id"),
			},
			Params:     c.Request.URL.Query(),
			StatusCode: c.Writer.Status(),
			Response:   json.RawMessage(bytes.Clone(body)),
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		})
	}
}
