package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"leiloes-caixa/config"
	"leiloes-caixa/models"
	"leiloes-caixa/parser"
	"leiloes-caixa/utils"
)

func newTestGateway(t *testing.T) (*Gateway, *LocalBucket) {
	t.Helper()
	bucket, err := NewLocalBucket(filepath.Join(t.TempDir(), "bucket"), "test-bucket")
	require.NoError(t, err)
	logger := utils.NewLoggerTo(io.Discard, slog.LevelDebug)
	return NewGateway(bucket, nil, logger), bucket
}

func mustDate(t *testing.T) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, "2024-02-01")
	require.NoError(t, err)
	return d
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestGatewayRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t)

	// Latin-1 bytes and CRLF must survive unchanged.
	payload := []byte("Lista de Im\xf3veis\r\nN\xba;UF\r\n1;MG\r\n")
	src := writeFile(t, "lista.csv", payload)

	key := models.RawKey("Lista_imoveis_MG", mustDate(t))
	require.NoError(t, gw.Put(ctx, src, key))

	dst := filepath.Join(t.TempDir(), "nested", "copy.csv")
	require.NoError(t, gw.Get(ctx, key, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.True(t, bytes.Equal(payload, got))
}

func TestGatewayPutOverwrites(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t)

	key := models.IntegratedKey("Lista_imoveis_SP")
	require.NoError(t, gw.Put(ctx, writeFile(t, "a.csv", []byte("a\n1\n")), key))
	require.NoError(t, gw.Put(ctx, writeFile(t, "b.csv", []byte("a\n2\n")), key))

	dst := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, gw.Get(ctx, key, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "a\n2\n", string(got))
}

func TestGatewayGetMissing(t *testing.T) {
	gw, _ := newTestGateway(t)

	dst := filepath.Join(t.TempDir(), "missing.csv")
	err := gw.Get(context.Background(), "data/raw/nope.csv", dst)
	require.ErrorIs(t, err, ErrNotFound)

	var te *TransferError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "get", te.Op)

	_, statErr := os.Stat(dst)
	require.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestGatewayPutMissingLocalFile(t *testing.T) {
	gw, _ := newTestGateway(t)

	err := gw.Put(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), "data/raw/x.csv")
	var te *TransferError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "put", te.Op)
}

func TestGatewayReadTable(t *testing.T) {
	gw, _ := newTestGateway(t)

	p := writeFile(t, "clean.csv", []byte("N° do imóvel,UF,Preço\n1,MG,100\n2,SP,200\n"))
	table, err := gw.ReadTable(p)
	require.NoError(t, err)

	want := &models.Table{
		Columns: []string{"N° do imóvel", "UF", "Preço"},
		Rows:    [][]string{{"1", "MG", "100"}, {"2", "SP", "200"}},
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Errorf("ReadTable mismatch (-want +got):\n%s", diff)
	}
}

func TestGatewayReadTableRejectsLatin1(t *testing.T) {
	gw, _ := newTestGateway(t)

	p := writeFile(t, "latin.csv", []byte("Pre\xe7o\n1\n"))
	_, err := gw.ReadTable(p)

	var de *parser.DecodeError
	require.True(t, errors.As(err, &de))
}

func TestGatewayReadRemoteTable(t *testing.T) {
	ctx := context.Background()
	gw, bucket := newTestGateway(t)

	raw := "Lista de Im\xf3veis da Caixa\n N\xba do im\xf3vel;UF;Cidade\n8444;MG;BELO HORIZONTE\n8445;MG;CONTAGEM\n"
	key := "data/raw/Lista_imoveis_MG_01_02_2024.csv"
	require.NoError(t, bucket.Upload(ctx, key, strings.NewReader(raw), "text/csv"))

	table, err := gw.ReadRemoteTable(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []string{"Nº do imóvel", "UF", "Cidade"}, table.Columns)
	require.Equal(t, 2, table.RowCount())
	require.Equal(t, []string{"8445", "MG", "CONTAGEM"}, table.Rows[1])
}

func TestGatewayReadRemoteTableMissing(t *testing.T) {
	gw, _ := newTestGateway(t)

	_, err := gw.ReadRemoteTable(context.Background(), "data/raw/none.csv")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBucketRejectsEscapingKeys(t *testing.T) {
	root := filepath.Join(t.TempDir(), "bucket")
	bucket, err := NewLocalBucket(root, "b")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bucket.Upload(ctx, "../../escape.csv", strings.NewReader("x"), "text/csv"))

	// The key is confined to the root after cleaning.
	_, err = os.Stat(filepath.Join(root, "escape.csv"))
	require.NoError(t, err)

	require.Error(t, bucket.Upload(ctx, "", strings.NewReader("x"), "text/csv"))
	require.Error(t, bucket.Upload(ctx, "data/", strings.NewReader("x"), "text/csv"))
}

func TestOpenBucketLocal(t *testing.T) {
	cfg := &config.Config{Bucket: "leiloes"}
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.Local.Root = t.TempDir()

	bucket, err := OpenBucket(context.Background(), cfg)
	require.NoError(t, err)
	defer bucket.Close()

	require.IsType(t, &LocalBucket{}, bucket)
	require.Equal(t, "leiloes", bucket.Name())
}
