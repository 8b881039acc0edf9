package push_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
)

func TestResult(t *testing.T) {
	t.Run("Successful response", func(t *testing.T) {
		r := push.NewResult(map[string]any{"_status_code": 200, "id": "abc", "recipients": 5}, 200)

		assert.True(t, r.IsSuccessful())
		assert.Equal(t, "abc", r.NotificationID())
		assert.Equal(t, 5, r.Recipients())
		assert.Empty(t, r.Errors())
		assert.Equal(t, 200, r.StatusCode())
	})

	t.Run("Status 200 with errors is unsuccessful", func(t *testing.T) {
		r := push.NewResult(map[string]any{"id": "abc", "errors": []any{"Segment X not found"}}, 200)

		assert.False(t, r.IsSuccessful())
		assert.Equal(t, []any{"Segment X not found"}, r.Errors())
	})

	t.Run("Non-200 is unsuccessful", func(t *testing.T) {
		r := push.NewResult(map[string]any{}, 400)
		assert.False(t, r.IsSuccessful())
	})

	t.Run("Defaults for missing fields", func(t *testing.T) {
		r := push.NewResult(nil, 0)

		assert.Equal(t, "", r.NotificationID())
		assert.Equal(t, 0, r.Recipients())
		assert.Equal(t, []any{}, r.Errors())
		assert.Empty(t, r.RawResponse())
	})

	t.Run("Recipients coercion never panics", func(t *testing.T) {
		assert.Equal(t, 7, push.NewResult(map[string]any{"recipients": float64(7)}, 200).Recipients())
		assert.Equal(t, 3, push.NewResult(map[string]any{"recipients": "3"}, 200).Recipients())
		assert.Equal(t, 0, push.NewResult(map[string]any{"recipients": "many"}, 200).Recipients())
		assert.Equal(t, 0, push.NewResult(map[string]any{"recipients": []any{1}}, 200).Recipients())
	})

	t.Run("Object shaped errors are kept as one entry", func(t *testing.T) {
		errs := map[string]any{"invalid_external_user_ids": []any{"9"}}
		r := push.NewResult(map[string]any{"errors": errs}, 200)

		assert.False(t, r.IsSuccessful())
		assert.Equal(t, []any{errs}, r.Errors())
	})

	t.Run("Empty errors field counts as success", func(t *testing.T) {
		assert.True(t, push.NewResult(map[string]any{"errors": []any{}}, 200).IsSuccessful())
		assert.True(t, push.NewResult(map[string]any{"errors": nil}, 200).IsSuccessful())
	})

	t.Run("Raw response is a copy", func(t *testing.T) {
		raw := map[string]any{"id": "abc"}
		r := push.NewResult(raw, 200)
		raw["id"] = "changed"

		got := r.RawResponse()
		got["id"] = "also-changed"

		assert.Equal(t, "abc", r.NotificationID())
	})
}
