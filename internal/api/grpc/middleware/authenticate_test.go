package middleware

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/sqrl-server/internal/mocks"
	"github.com/dtroode/sqrl-server/internal/testutil"
)

const testCorrelator = "jUJVUIpFWCP2PEMgivCIEme3d32GVH3UTafvAmL1Uqg"

func TestAuthenticate_AuthFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		md           metadata.MD
		wantGRPCCode codes.Code
		wantErr      bool
		expectSetCtx bool
	}{
		{
			name:         "no metadata",
			md:           nil,
			wantGRPCCode: codes.Unauthenticated,
			wantErr:      true,
		},
		{
			name:         "missing correlator",
			md:           metadata.Pairs("authorization", "Bearer x"),
			wantGRPCCode: codes.Unauthenticated,
			wantErr:      true,
		},
		{
			name:         "wrong length",
			md:           metadata.Pairs(CorrelatorHeader, "short"),
			wantGRPCCode: codes.Unauthenticated,
			wantErr:      true,
		},
		{
			name:         "not base64url",
			md:           metadata.Pairs(CorrelatorHeader, strings.Repeat("*", 43)),
			wantGRPCCode: codes.Unauthenticated,
			wantErr:      true,
		},
		{
			name:         "valid correlator",
			md:           metadata.Pairs(CorrelatorHeader, testCorrelator),
			wantGRPCCode: codes.OK,
			expectSetCtx: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cm := mocks.NewContextManager(t)
			if tt.expectSetCtx {
				cm.On("SetCorrelatorToContext", mock.Anything, testCorrelator).Return(context.Background())
			}

			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}

			m := NewAuthenticate(cm, testutil.MakeNoopLogger())
			out, err := m.AuthFunc(ctx)
			if tt.wantErr {
				assert.Nil(t, out)
				st, ok := status.FromError(err)
				assert.True(t, ok)
				assert.Equal(t, tt.wantGRPCCode, st.Code())
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, out)
		})
	}
}
