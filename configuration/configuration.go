package configuration

type Configuration struct {
	HttpAddr          string `usage:"HTTP address"`
	Dir               string `usage:"data directory"`
	Backend           string `usage:"league storage: jsonl, sqlite or memory"`
	League            string `usage:"league opened at start"`
	FlushEvery        int    `usage:"seconds between automatic flushes, 0 disables them"`
	EnableCompression bool   `usage:"gzip responses"`
	ApiKey            string `usage:"API key required in X-Api-Key"`
	ApiSecret         string `usage:"API secret required in X-Api-Secret"`
	Version           bool   `usage:"show version and exit"`
	ShowBanner        bool   `usage:"show big banner"`
	ShowConfig        bool   `usage:"print config"`
}

func Default() Configuration {
	return Configuration{
		HttpAddr:          "127.0.0.1:8080",
		Dir:               "data",
		Backend:           "jsonl",
		FlushEvery:        30,
		EnableCompression: true,
		ShowBanner:        true,
	}
}
