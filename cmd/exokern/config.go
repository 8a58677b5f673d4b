package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by the command. A .env file in the working
// directory may set them too; variables already in the environment win.
const (
	envCPUs        = "EXOKERN_CPUS"
	envEnvs        = "EXOKERN_ENVS"
	envFrames      = "EXOKERN_FRAMES"
	envDB          = "EXOKERN_DB"
	envMonitorPort = "EXOKERN_MONITOR_PORT"
)

type config struct {
	NumCPU      int
	NumEnvs     int
	NumFrames   int
	DBPath      string
	MonitorPort int
}

func defaultConfig() config {
	return config{
		NumCPU:    1,
		NumEnvs:   1024,
		NumFrames: 4096,
	}
}

// loadConfig applies the dotenv files, then the environment, to the
// defaults. Missing files are ignored.
func loadConfig(files ...string) (config, error) {
	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	c := defaultConfig()

	for _, v := range []struct {
		name string
		dst  *int
	}{
		{envCPUs, &c.NumCPU},
		{envEnvs, &c.NumEnvs},
		{envFrames, &c.NumFrames},
		{envMonitorPort, &c.MonitorPort},
	} {
		if err := intFromEnv(v.name, v.dst); err != nil {
			return config{}, err
		}
	}

	if s, ok := os.LookupEnv(envDB); ok {
		c.DBPath = s
	}

	return c, c.validate()
}

func intFromEnv(name string, dst *int) error {
	s, ok := os.LookupEnv(name)
	if !ok || s == "" {
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	*dst = n

	return nil
}

func (c config) validate() error {
	switch {
	case c.NumCPU <= 0:
		return fmt.Errorf("number of CPUs must be positive, got %d", c.NumCPU)
	case c.NumEnvs <= c.NumCPU:
		return fmt.Errorf("%d environments leave no room for user programs "+
			"next to %d idle ones", c.NumEnvs, c.NumCPU)
	case c.NumFrames <= 0:
		return fmt.Errorf("number of frames must be positive, got %d",
			c.NumFrames)
	case c.MonitorPort < 0:
		return fmt.Errorf("invalid monitor port %d", c.MonitorPort)
	}

	return nil
}
