package analyzer

import (
	"context"
	"testing"

	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHeaderAnalyzer(t *testing.T) {
	tests := []struct {
		name           string
		email          *core.Email
		wantScore      float64
		wantConfidence float64
	}{
		{
			name: "plain personal email",
			email: &core.Email{
				From: "alice@example.com",
				Headers: map[string][]string{
					"From":    {"Alice <alice@example.com>"},
					"Subject": {"lunch tomorrow?"},
				},
			},
			wantScore:      0.0,
			wantConfidence: 0.7,
		},
		{
			name: "list-unsubscribe only",
			email: &core.Email{
				From: "alice@example.com",
				Headers: map[string][]string{
					"From":             {"Alice <alice@example.com>"},
					"List-Unsubscribe": {"<https://example.com/u/1>"},
				},
			},
			wantScore:      0.6,
			wantConfidence: 0.65,
		},
		{
			name: "unsubscribe header and bulk precedence",
			email: &core.Email{
				From: "alice@example.com",
				Headers: map[string][]string{
					"From":             {"Alice <alice@example.com>"},
					"List-Unsubscribe": {"<https://example.com/u/1>"},
					"Precedence":       {"bulk"},
				},
			},
			wantScore:      0.9,
			wantConfidence: 0.8,
		},
		{
			name: "all three indicator families cap at one",
			email: &core.Email{
				From: "newsletter@acme.com",
				Headers: map[string][]string{
					"From":             {"Acme Newsletter <newsletter@acme.com>"},
					"List-Unsubscribe": {"<mailto:u@acme.com>"},
					"List-ID":          {"<news.acme.com>"},
				},
			},
			wantScore:      1.0,
			wantConfidence: 0.95,
		},
		{
			name: "bulk platform marker in x-mailer",
			email: &core.Email{
				From: "alice@example.com",
				Headers: map[string][]string{
					"From":     {"Alice <alice@example.com>"},
					"X-Mailer": {"MailChimp Mailer 4.2"},
				},
			},
			wantScore:      0.3,
			wantConfidence: 0.65,
		},
		{
			name: "newsletter local part only",
			email: &core.Email{
				From: "digest@weeklynews.io",
				Headers: map[string][]string{
					"From": {"digest@weeklynews.io"},
				},
			},
			wantScore:      0.25,
			wantConfidence: 0.65,
		},
	}

	a := NewHeaderAnalyzer(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Analyze(context.Background(), tt.email)
			require.NoError(t, err)

			assert.Equal(t, core.MethodHeader, got.Method)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestHeaderAnalyzerCaseInsensitiveHeaders(t *testing.T) {
	a := NewHeaderAnalyzer(zap.NewNop())

	email := &core.Email{
		From: "alice@example.com",
		Headers: map[string][]string{
			"list-unsubscribe": {"<https://example.com/u/1>"},
		},
	}

	got, err := a.Analyze(context.Background(), email)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, got.Score, 1e-9)
}
