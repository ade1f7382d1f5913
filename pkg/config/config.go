package config

import (
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// newViper 约定：config/{service}.yaml，环境变量前缀为大写服务名，
// 例如 SWEEPER_HTTP_CRONSECRET 覆盖 http.cronSecret
func newViper(service string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(service)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".") // 兜底，直接放当前目录也行

	v.SetEnvPrefix(strings.ToUpper(service))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load 只读取一次，不监听变更
func Load(service string, out interface{}) (*viper.Viper, error) {
	v := newViper(service)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}
	log.Printf("[%s] config loaded from %s", service, v.ConfigFileUsed())
	return v, nil
}

// LoadAndWatch 读取配置并监听文件变更，热更新到 out。
// onChange 可为 nil；返回 error 时保留旧配置。
func LoadAndWatch(service string, out interface{}, onChange func() error) (*viper.Viper, error) {
	v, err := Load(service, out)
	if err != nil {
		return nil, err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("[%s] config file changed: %s", service, e.Name)

		if err := v.Unmarshal(out); err != nil {
			log.Printf("[%s] reload config error: %v", service, err)
			return
		}
		if onChange != nil {
			if err := onChange(); err != nil {
				log.Printf("[%s] reload hook error: %v", service, err)
				return
			}
		}
		log.Printf("[%s] config reloaded OK", service)
	})

	return v, nil
}
