package cmd

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Alexyn15/trangsucvn/config"
)

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Log.Level))
	if err != nil {
		return err
	}

	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(level)
	logrus.AddHook(&serviceNameHook{serviceName: cfg.App.ServiceName})

	return nil
}

type serviceNameHook struct {
	serviceName string
}

func (h *serviceNameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *serviceNameHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = h.serviceName
	}
	return nil
}
