package tmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	vars := map[string]string{"app_name": "blog", "port": "5000"}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text passes through", "config.x = { host: 'localhost' }", "config.x = { host: 'localhost' }"},
		{"variable", "web: bundle exec rails s -p {{ port }}", "web: bundle exec rails s -p 5000"},
		{"filter", "module {{ app_name|capfirst }}", "module Blog"},
		{"if tag", "{% if port %}PORT={{ port }}{% endif %}", "PORT=5000"},
		{"missing var renders empty", "[{{ nope }}]", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.in, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_ParseError(t *testing.T) {
	_, err := Render("{% if %}", nil)
	assert.Error(t, err)
}

func TestRenderAll(t *testing.T) {
	out, err := RenderAll([]string{"generate", "{{ model }}", "name"}, map[string]string{"model": "User"})
	require.NoError(t, err)
	assert.Equal(t, []string{"generate", "User", "name"}, out)

	out, err = RenderAll(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestTemplateNames(t *testing.T) {
	assert.True(t, IsTemplate("Procfile.tt"))
	assert.False(t, IsTemplate("Procfile"))
	assert.Equal(t, "Procfile", OutputName("Procfile.tt"))
	assert.Equal(t, "Procfile", OutputName("Procfile"))
}
