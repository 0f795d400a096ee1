package tenant

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeClient(t *testing.T, dir, id, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".env"), []byte(body), 0o600))
}

const shop1Env = `CLIENT_ID=shop1
CLIENT_NAME="Shop One"
DATABASE_URL=mysql://shop:pw@tcp(localhost:3306)/shop1
JWT_SECRET=s3cret
EMAIL_HOST=smtp.shop1.test
EMAIL_PORT=587
EMAIL_FROM=hello@shop1.test
STRIPE_SECRET_KEY=sk_test_1
WELCOME_EMAIL=true
CATALOG_SOURCE=Database
`

func TestLoader_LoadDecodesClientFile(t *testing.T) {
	dir := t.TempDir()
	writeClient(t, dir, "shop1", shop1Env)

	cfg, err := NewLoader(dir).Load("shop1")
	require.NoError(t, err)

	assert.Equal(t, "shop1", cfg.ID)
	assert.Equal(t, "Shop One", cfg.Name)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 587, cfg.EmailPort)
	assert.True(t, cfg.WelcomeEmail)
	assert.True(t, cfg.HasSMTP())
	assert.Equal(t, CatalogDatabase, cfg.CatalogSource)
	assert.Equal(t, StorageLocal, cfg.StorageProvider)
	assert.Equal(t, []string{"stripe"}, cfg.PaymentProviders())
}

func TestLoader_CachesAfterFirstLoad(t *testing.T) {
	dir := t.TempDir()
	writeClient(t, dir, "shop1", shop1Env)
	l := NewLoader(dir)

	_, err := l.Load("shop1")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "shop1.env")))

	cfg, err := l.Load("shop1")
	require.NoError(t, err)
	assert.Equal(t, "Shop One", cfg.Name)
}

func TestLoader_MissingFileIsNotFound(t *testing.T) {
	_, err := NewLoader(t.TempDir()).Load("ghost")
	assert.True(t, errors.Is(err, ErrClientNotFound))
}

func TestLoader_RejectsTraversalIDs(t *testing.T) {
	l := NewLoader(t.TempDir())
	for _, id := range []string{"../etc/passwd", "Shop1", "", "a/b"} {
		_, err := l.Load(id)
		assert.True(t, errors.Is(err, ErrClientNotFound), id)
	}
}

func TestLoader_ReportsEveryMissingField(t *testing.T) {
	dir := t.TempDir()
	writeClient(t, dir, "shop2", "CLIENT_NAME=\nSTORAGE_PROVIDER=ftp\n")

	_, err := NewLoader(dir).Load("shop2")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{"CLIENT_NAME", "DATABASE_URL", "JWT_SECRET"}, verr.Missing)
	assert.Equal(t, []string{"STORAGE_PROVIDER=ftp"}, verr.Invalid)
	assert.Contains(t, err.Error(), "client shop2")
}

func TestLoader_ClientIDMustMatchFileName(t *testing.T) {
	dir := t.TempDir()
	writeClient(t, dir, "shop3", "CLIENT_ID=other\nCLIENT_NAME=x\nDATABASE_URL=x\nJWT_SECRET=x\n")

	_, err := NewLoader(dir).Load("shop3")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestLoader_IDsAndLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeClient(t, dir, "shop1", shop1Env)
	writeClient(t, dir, "broken", "CLIENT_NAME=Broken\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o600))

	l := NewLoader(dir)
	ids, err := l.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"broken", "shop1"}, ids)

	cfgs, err := l.LoadAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client broken")
	require.Len(t, cfgs, 1)
	assert.Equal(t, "shop1", cfgs[0].ID)
}

func TestLoader_IDsOnMissingDirectory(t *testing.T) {
	ids, err := NewLoader(filepath.Join(t.TempDir(), "nope")).IDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
