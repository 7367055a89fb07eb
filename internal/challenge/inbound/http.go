package inbound

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/challenge/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type uc interface {
	Issue(ctx context.Context, in usecase.IssueInput) (*usecase.IssueOutput, error)
	Verify(ctx context.Context, in usecase.VerifyInput) (*usecase.VerifyOutput, error)
	VerifyBackupCode(ctx context.Context, in usecase.VerifyBackupCodeInput) (*usecase.VerifyOutput, error)
	Cancel(ctx context.Context, in usecase.CancelInput) error

	TrustedDevices(ctx context.Context, in usecase.TrustedDevicesInput) (*usecase.TrustedDevicesOutput, error)
	RevokeDevices(ctx context.Context, in usecase.RevokeDevicesInput) error
	RotateBackupCodes(ctx context.Context, in usecase.RotateBackupCodesInput) (*usecase.RotateBackupCodesOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// Challenge lifecycle (host forwards end-user context)
	r.POST("/api/v1/challenge/issue", end.Issue)
	r.POST("/api/v1/challenge/verify", end.Verify)
	r.POST("/api/v1/challenge/verify/backup-code", end.VerifyBackupCode)
	r.POST("/api/v1/challenge/cancel", end.Cancel)

	// Management (need authenticated)
	r.GET("/api/v1/challenge/devices", end.TrustedDevices)
	r.POST("/api/v1/challenge/devices/revoke-all", end.RevokeDevices)
	r.POST("/api/v1/challenge/backup-codes/rotate", end.RotateBackupCodes)
}
