package emailsvc_test

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/user"
	"github.com/trezcool/insights/services/email"
	"github.com/trezcool/insights/tests"
)

func TestConsoleService(t *testing.T) {
	conf := testutil.NewConfig(t)
	svc := emailsvc.NewConsoleServiceMock(conf, testutil.NewLogger("API : "))

	teacher := user.User{Name: "Kim", Username: "kim", Email: "kim@test.kr"}
	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Address: "boss@test.kr"}},
			Subject:      "New teacher awaiting approval",
			TemplateName: "teacher_registered",
			TemplateData: teacher,
			AppName:      "Insights",
		},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "lost"},
		&core.EmailMessage{To: []mail.Address{{Address: "a@test.kr"}}, Subject: "plain", BodyStr: "hello"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)

	assert.Contains(t, sent[0].TextContent, "Username: kim")
	assert.Contains(t, sent[0].TextContent, "Insights")
	assert.Contains(t, sent[0].HTMLContent, "kim@test.kr")
	assert.Equal(t, "hello", sent[1].TextContent)
	assert.Empty(t, sent[1].HTMLContent)
}
