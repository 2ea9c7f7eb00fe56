package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in  *s3.PutObjectInput
	err error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Outbox_WritesJSONObject(t *testing.T) {
	p := &fakePutter{}
	o := &S3Outbox{client: p, bucket: "mail"}
	msg := PasswordReset{Email: "a@example.com", Token: "tok", ResetURL: "http://x/reset-password?token=tok", ExpiresAt: time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)}

	require.NoError(t, o.NotifyPasswordReset(context.Background(), msg))

	assert.Equal(t, "mail", aws.ToString(p.in.Bucket))
	key := aws.ToString(p.in.Key)
	assert.True(t, strings.HasPrefix(key, outboxPrefix), key)
	assert.True(t, strings.HasSuffix(key, ".json"), key)

	raw, err := io.ReadAll(p.in.Body)
	require.NoError(t, err)
	var got PasswordReset
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, msg, got)
}

func TestS3Outbox_PropagatesError(t *testing.T) {
	o := &S3Outbox{client: &fakePutter{err: errors.New("denied")}, bucket: "mail"}
	err := o.NotifyPasswordReset(context.Background(), PasswordReset{Email: "a@example.com"})
	assert.ErrorContains(t, err, "denied")
}

func TestLogNotifier_HidesLinkOutsideDevelopment(t *testing.T) {
	msg := PasswordReset{Email: "a@example.com", Token: "secret-token", ResetURL: "http://x/reset-password?token=secret-token"}

	var prod bytes.Buffer
	require.NoError(t, NewLogNotifier(logging.NewJSONLogger(&prod, "debug"), false).NotifyPasswordReset(context.Background(), msg))
	assert.NotContains(t, prod.String(), "secret-token")

	var dev bytes.Buffer
	require.NoError(t, NewLogNotifier(logging.NewJSONLogger(&dev, "debug"), true).NotifyPasswordReset(context.Background(), msg))
	assert.Contains(t, dev.String(), "secret-token")
}
