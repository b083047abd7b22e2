package config

// configer is the process wide configuration. The daemon replaces it once at startup.
var configer Configer = NewDotenvConfig(DefaultDotenvPath())

func SetConfig(c Configer) {
	configer = c
}

func GetConfig() Configer {
	return configer
}

func Load() error {
	return configer.Load()
}

func GetIntKeyWithDefault(key string, defaultValue int) int {
	return configer.GetIntKeyWithDefault(key, defaultValue)
}
