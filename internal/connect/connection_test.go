package connect

import (
	"testing"

	"github.com/joshua-takyi/campus-events/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMongoDBConnectPingFailureLeavesNoClient(t *testing.T) {
	cfg := &config.Config{
		MongoDBURI: "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200",
	}

	client, err := MongoDBConnect(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping MongoDB")
	assert.Nil(t, client)
	assert.Nil(t, MongoDBClient)
	assert.NoError(t, MongoDBDisconnect())
}

func TestRedisConnectDisabledWithoutAddr(t *testing.T) {
	rdb, err := RedisConnect(&config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, rdb)
}
