package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"appgate/pkg/config"
)

func TestRedactDSN(t *testing.T) {
	require.Equal(t, "***@db:5432/app", redactDSN("postgres://u:p@ss@db:5432/app"))
	require.Equal(t, "postgres://db/app", redactDSN("postgres://db/app"))
}

func TestMustConnectWithoutURL(t *testing.T) {
	log := zap.NewNop().Sugar()
	require.Nil(t, MustConnect(config.Config{}, log))
	require.Nil(t, MustRedis(config.Config{}, log))
}
