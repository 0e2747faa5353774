package config

type AppConfig struct {
	Server ServerConfig
	Chain  ChainConfig
	Log    LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	chainCfg, err := LoadChain()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server: serverCfg,
		Chain:  chainCfg,
		Log:    logCfg,
	}, nil
}
