package repository

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListMessagesQuery_CursorIsBigint(t *testing.T) {
	// seq - BIGSERIAL, курсор за пределами int4 не должен ломать запрос
	placeholders := regexp.MustCompile(`\$2(::[A-Z]+)?`).FindAllStringSubmatch(listMessagesQuery, -1)
	assert.Len(t, placeholders, 2)
	for _, m := range placeholders {
		assert.Equal(t, "::BIGINT", m[1])
	}
}
