package ace

import (
	"strings"
	"sync"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ace core configuration props.
const (
	// log level: trace, debug, info, warn, error
	PropLogLevel = "ace.log.level"

	// rolling log file, logs to stdout only when unset
	PropLogFile = "ace.log.file"
)

var appConfig = &configHolder{vp: viper.New()}

func init() {
	SetDefProp(PropLogLevel, "info")
}

// configHolder guards the underlying viper instance, viper itself is not thread-safe.
type configHolder struct {
	mu sync.RWMutex
	vp *viper.Viper
}

// Set config property.
func SetProp(prop string, val any) {
	appConfig.mu.Lock()
	defer appConfig.mu.Unlock()
	appConfig.vp.Set(prop, val)
}

// Set default value for config property.
func SetDefProp(prop string, defVal any) {
	appConfig.mu.Lock()
	defer appConfig.mu.Unlock()
	appConfig.vp.SetDefault(prop, defVal)
}

// Check whether config property exists.
func HasProp(prop string) bool {
	appConfig.mu.RLock()
	defer appConfig.mu.RUnlock()
	return appConfig.vp.IsSet(prop)
}

// Get config property as string.
func GetPropStr(prop string) string {
	appConfig.mu.RLock()
	defer appConfig.mu.RUnlock()
	return cast.ToString(appConfig.vp.Get(prop))
}

// Get config property as int.
func GetPropInt(prop string) int {
	appConfig.mu.RLock()
	defer appConfig.mu.RUnlock()
	return cast.ToInt(appConfig.vp.Get(prop))
}

// Get config property as bool.
func GetPropBool(prop string) bool {
	appConfig.mu.RLock()
	defer appConfig.mu.RUnlock()
	return cast.ToBool(appConfig.vp.Get(prop))
}

// Get config property as string slice.
func GetPropStrSlice(prop string) []string {
	appConfig.mu.RLock()
	defer appConfig.mu.RUnlock()
	return cast.ToStringSlice(appConfig.vp.Get(prop))
}

// Load configuration from yaml file, properties already set take precedence.
func LoadConfigFromFile(rail Rail, file string) error {
	appConfig.mu.Lock()
	defer appConfig.mu.Unlock()

	appConfig.vp.SetConfigFile(file)
	appConfig.vp.SetConfigType(configType(file))
	if err := appConfig.vp.MergeInConfig(); err != nil {
		return WrapErrf(err, "failed to load config file '%v'", file)
	}
	rail.Infof("Loaded config file: '%v'", file)
	return nil
}

func configType(file string) string {
	if i := strings.LastIndexByte(file, '.'); i > -1 && i < len(file)-1 {
		return file[i+1:]
	}
	return "yml"
}

// Apply ace.log.* props to the logger.
func ConfigureLogging(rail Rail) {
	SetLogLevel(GetPropStr(PropLogLevel))
	if f := GetPropStr(PropLogFile); f != "" {
		ConfigureFileLogging(f)
		rail.Infof("Logging to rolling file: '%v'", f)
	}
}
