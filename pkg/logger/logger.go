package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDKey is the metadata key carrying the caller's request id
const RequestIDKey = "x-request-id"

type ctxKey struct{}

// Logger wraps logrus logger
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a JSON logger tagged with serviceName
func NewLogger(serviceName, level string) *Logger {
	return newLogger(serviceName, level, os.Stdout)
}

func newLogger(serviceName, level string, out io.Writer) *Logger {
	log := logrus.New()

	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(out)

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	log.AddHook(serviceHook(serviceName))

	return &Logger{Logger: log}
}

type serviceHook string

func (h serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h serviceHook) Fire(e *logrus.Entry) error {
	e.Data["service"] = string(h)
	return nil
}

// WithRequestID adds request ID to logger
func (l *Logger) WithRequestID(requestID string) *logrus.Entry {
	return l.WithField("request_id", requestID)
}

// WithUserID adds user ID to logger
func (l *Logger) WithUserID(userID uint64) *logrus.Entry {
	return l.WithField("user_id", userID)
}

// FromContext returns an entry carrying the request id stored in ctx, if any
func (l *Logger) FromContext(ctx context.Context) *logrus.Entry {
	if id := RequestID(ctx); id != "" {
		return l.WithRequestID(id)
	}
	return logrus.NewEntry(l.Logger)
}

// ContextWithRequestID stores id in ctx
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id stored in ctx
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(RequestIDKey); len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	return uuid.NewString()
}

// UnaryServerInterceptor returns a new unary server interceptor for logging.
// It assigns every call a request id, taken from x-request-id when present.
func UnaryServerInterceptor(logger *Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		requestID := incomingRequestID(ctx)
		ctx = ContextWithRequestID(ctx, requestID)
		start := time.Now()

		resp, err := handler(ctx, req)

		entry := logger.WithFields(logrus.Fields{
			"method":      info.FullMethod,
			"request_id":  requestID,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil {
			entry.WithFields(logrus.Fields{
				"code":  status.Code(err).String(),
				"error": err.Error(),
			}).Error("gRPC request failed")
		} else {
			entry.Info("gRPC request")
		}

		return resp, err
	}
}
