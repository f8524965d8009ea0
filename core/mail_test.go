package core

import (
	"io/fs"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfs "github.com/simchatzion/ledger/fs"
)

func useTemplates(t *testing.T, fsys fs.FS) {
	reset := func(fsys fs.FS) {
		templatesFS, templates, tmplErr = fsys, nil, nil
		tmplInit = sync.Once{}
	}
	reset(fsys)
	t.Cleanup(func() { reset(appfs.FS) })
}

func TestEmailMessage_Render(t *testing.T) {
	useTemplates(t, appfs.FS)

	msg := &EmailMessage{
		TemplateName: "monthly_request",
		TemplateData: map[string]string{"Title": "January", "Preheader": "", "Body": "Shalom,\n\nPlease send the receipt."},
		Lang:         "en",
	}
	require.NoError(t, msg.Render())
	assert.Equal(t, "Shalom,\n\nPlease send the receipt.", msg.TextContent)
	assert.Contains(t, msg.HTMLContent, "Please send the receipt.")
	assert.Contains(t, msg.HTMLContent, "direction: ltr")
}

func TestEmailMessage_RenderTemplateParseError(t *testing.T) {
	useTemplates(t, fstest.MapFS{
		"templates/email/_base.txt":  {Data: []byte(`{{define "base"}}{{template "content" .}}{{end}}`)},
		"templates/email/broken.txt": {Data: []byte(`{{define "content"}}{{.Data.Body}`)},
	})

	msg := &EmailMessage{TemplateName: "broken"}
	err := msg.Render()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parsing email templates"), err.Error())

	// the failure is kept for later messages
	assert.Equal(t, err, (&EmailMessage{TemplateName: "broken"}).Render())

	// plain bodies do not need templates
	plain := &EmailMessage{BodyStr: "hello"}
	require.NoError(t, plain.Render())
	assert.Equal(t, "hello", plain.TextContent)
}
