package license

import (
	"context"
	"fmt"
	"time"

	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/pkg/quota"
	"licensing-controlplane/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service orchestrates license issuance, application registration and job
// admission. Enforcement parameters come from verified token claims, not from
// re-reading the license row on the hot path.
type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	codec    *Codec
	quota    *quota.Engine
	licenses repository.Repository[License]
	apps     repository.Repository[Application]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Codec *Codec
	Quota *quota.Engine
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		codec:    p.Codec,
		quota:    p.Quota,
		licenses: repository.ProvideStore[License](p.DB),
		apps:     repository.ProvideStore[Application](p.DB),
	}
}

func requestLogger(ctx context.Context) *zap.Logger {
	span := trace.SpanFromContext(ctx)

	return zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)
}

func (s *Service) CreateLicense(ctx context.Context, req *CreateLicenseRequest) (*CreateLicenseResponse, error) {
	zapLog := requestLogger(ctx).With(zap.String("tenant_id", req.TenantID))

	if !req.ValidFrom.Before(req.ValidTo) {
		return nil, errutil.ValidationFailed("valid_from must be before valid_to")
	}

	status := req.Status
	if status == "" {
		status = StatusActive
	}
	if !status.Valid() {
		return nil, errutil.ValidationFailed(fmt.Sprintf("unknown license status %q", status))
	}

	exist, err := s.licenses.FindOne(ctx, &License{TenantID: req.TenantID})
	if err != nil {
		zapLog.Error("failed to check existing license", zap.Error(err))
		return nil, errutil.Internal("failed to check existing license", errutil.WithErr(err))
	}
	if exist != nil {
		zapLog.Warn("license already exists")
		return nil, errutil.Conflict("license already exists")
	}

	now := time.Now()
	lic := &License{
		ID:                  s.node.Generate().String(),
		TenantID:            req.TenantID,
		MaxApps:             req.MaxApps,
		MaxExecutionsPer24h: req.MaxExecutionsPer24h,
		ValidFrom:           req.ValidFrom,
		ValidTo:             req.ValidTo,
		Status:              status,
		Metadata:            req.Metadata,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.licenses.Create(ctx, lic); err != nil {
		zapLog.Error("failed to create license", zap.Error(err))
		return nil, errutil.Internal("failed to create license", errutil.WithErr(err))
	}

	token, err := s.codec.Encode(lic, now)
	if err != nil {
		zapLog.Error("failed to sign license token", zap.Error(err))
		return nil, errutil.Internal("failed to sign license token", errutil.WithErr(err))
	}

	zapLog.Info("license created",
		zap.String("license_id", lic.ID),
		zap.Int64("max_apps", lic.MaxApps),
		zap.Int64("max_executions_per_24h", lic.MaxExecutionsPer24h),
	)

	return &CreateLicenseResponse{License: lic, Token: token}, nil
}

func (s *Service) GetLicense(ctx context.Context, tenantID string) (*License, error) {
	lic, err := s.licenses.FindOne(ctx, &License{TenantID: tenantID})
	if err != nil {
		requestLogger(ctx).Error("failed to get license", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, errutil.Internal("failed to get license", errutil.WithErr(err))
	}
	if lic == nil {
		return nil, errutil.NotFound("license not found")
	}
	return lic, nil
}

func (s *Service) RegisterApplication(ctx context.Context, token string, req *RegisterApplicationRequest) (*RegisterApplicationResponse, error) {
	claims, err := s.codec.Decode(token, time.Now())
	if err != nil {
		return nil, err
	}

	zapLog := requestLogger(ctx).With(
		zap.String("tenant_id", claims.TenantID),
		zap.String("app_name", req.AppName),
	)

	lic, err := s.licenses.FindOne(ctx, &License{TenantID: claims.TenantID})
	if err != nil {
		zapLog.Error("failed to look up license", zap.Error(err))
		return nil, errutil.Internal("failed to look up license", errutil.WithErr(err))
	}
	if lic == nil {
		zapLog.Warn("token references missing license")
		return nil, errutil.NotFound("license not found")
	}

	count, err := s.apps.Count(ctx, &Application{LicenseID: lic.ID})
	if err != nil {
		zapLog.Error("failed to count applications", zap.Error(err))
		return nil, errutil.Internal("failed to count applications", errutil.WithErr(err))
	}

	// Registration-limit exhaustion is an expected business outcome, not an
	// error; the caller should simply stop registering.
	if count >= claims.MaxApps {
		zapLog.Info("application limit reached", zap.Int64("max_apps", claims.MaxApps))
		return &RegisterApplicationResponse{
			Success: false,
			Message: fmt.Sprintf("max apps (%d) reached", claims.MaxApps),
		}, nil
	}

	app := &Application{
		ID:        s.node.Generate().String(),
		LicenseID: lic.ID,
		AppName:   req.AppName,
		CreatedAt: time.Now(),
	}
	if err := s.apps.Create(ctx, app); err != nil {
		zapLog.Error("failed to create application", zap.Error(err))
		return nil, errutil.Internal("failed to create application", errutil.WithErr(err))
	}

	zapLog.Info("application registered", zap.String("app_id", app.ID))

	return &RegisterApplicationResponse{
		Success: true,
		Message: "application registered",
		AppID:   app.ID,
	}, nil
}

func (s *Service) StartJob(ctx context.Context, token string, req *StartJobRequest) (*StartJobResponse, error) {
	now := time.Now()

	claims, err := s.codec.Decode(token, now)
	if err != nil {
		return nil, err
	}

	zapLog := requestLogger(ctx).With(
		zap.String("tenant_id", claims.TenantID),
		zap.String("app_name", req.AppName),
	)

	lic, err := s.licenses.FindOne(ctx, &License{TenantID: claims.TenantID})
	if err != nil {
		zapLog.Error("failed to look up license", zap.Error(err))
		return nil, errutil.Internal("failed to look up license", errutil.WithErr(err))
	}
	if lic == nil {
		zapLog.Warn("token references missing license")
		return nil, errutil.NotFound("license not found")
	}

	app, err := s.apps.FindOne(ctx, &Application{LicenseID: lic.ID, AppName: req.AppName})
	if err != nil {
		zapLog.Error("failed to look up application", zap.Error(err))
		return nil, errutil.Internal("failed to look up application", errutil.WithErr(err))
	}
	if app == nil {
		return nil, errutil.BadRequest("application not registered")
	}

	jobID := s.quota.JobID(claims.TenantID, req.AppName, now)
	admitted, err := s.quota.TryAdmit(ctx, claims.TenantID, claims.MaxExecutionsPer24h, now, jobID)
	if err != nil {
		return nil, err
	}
	if !admitted {
		zapLog.Info("execution quota exhausted", zap.Int64("max_executions_per_24h", claims.MaxExecutionsPer24h))
		return nil, errutil.TooManyRequest(fmt.Sprintf("max executions per 24h (%d) reached", claims.MaxExecutionsPer24h))
	}

	zapLog.Info("job admitted", zap.String("job_id", jobID))

	return &StartJobResponse{Success: true, Message: "job started"}, nil
}
