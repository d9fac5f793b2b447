// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.level", "info")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "logs/adcrec.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 10485760)

	viper.SetDefault("source.type", SourceSerial)
	viper.SetDefault("source.port", "")
	viper.SetDefault("source.baudrate", 115200)
	viper.SetDefault("source.readtimeout", 100*time.Millisecond)
	viper.SetDefault("source.path", "-")

	viper.SetDefault("acquisition.samplerate", 48000)
	viper.SetDefault("acquisition.bytespersample", 3)
	viper.SetDefault("acquisition.queueceiling", 4096)
	viper.SetDefault("acquisition.batchsize", 512)
	viper.SetDefault("acquisition.idlewait", 5*time.Millisecond)
	viper.SetDefault("acquisition.ringcapacity", 48000)
	viper.SetDefault("acquisition.plotbits", 24)
	viper.SetDefault("acquisition.dropsummaryinterval", 10*time.Second)

	viper.SetDefault("recording.enabled", false)
	viper.SetDefault("recording.path", "recordings")
	viper.SetDefault("recording.minfreemb", 100)

	viper.SetDefault("mixer.enabled", true)
	viper.SetDefault("mixer.inputrate", 44100)
	viper.SetDefault("mixer.outputrate", 44100)
	viper.SetDefault("mixer.dcblock", true)
	channels := make([]map[string]any, NumMixerChannels)
	for i := range channels {
		channels[i] = map[string]any{"gain": 1.0, "pan": 0.0, "bits": 12}
	}
	viper.SetDefault("mixer.channels", channels)
	viper.SetDefault("mixer.wav.enabled", false)
	viper.SetDefault("mixer.wav.path", "recordings")
	viper.SetDefault("mixer.monitor.enabled", false)
	viper.SetDefault("mixer.monitor.backend", "malgo")
	viper.SetDefault("mixer.monitor.device", "")
	viper.SetDefault("mixer.monitor.bufferduration", time.Second)

	viper.SetDefault("status.interval", time.Second)

	viper.SetDefault("telemetry.prometheus.enabled", false)
	viper.SetDefault("telemetry.prometheus.listen", "127.0.0.1:9090")
	viper.SetDefault("telemetry.sentry.dsn", "")
}
