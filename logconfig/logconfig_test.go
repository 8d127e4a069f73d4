package logconfig

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestGetLogger(t *testing.T) {
	log := GetLogger(logrus.DebugLevel)

	assert.Equal(t, logrus.DebugLevel, log.Logger.GetLevel())
}

func TestWithPrefix(t *testing.T) {
	log := WithPrefix(GetLogger(logrus.InfoLevel), "dispatcher")

	assert.Equal(t, "dispatcher", log.Data["prefix"])
}
