package config

type MemoryType string

const MEMORY_TYPE_SHORT_TERM MemoryType = "short_term"
const MEMORY_TYPE_REDIS MemoryType = "redis"

type Config struct {
	HttpPort         int
	RedisConfig      RedisConfig
	MemoryType       MemoryType
	Engine           EngineConfig
	TraceExportFile  string
	RecorderCapacity int
}

type RedisConfig struct {
	Addrs     []string
	Namespace string
}

type EngineConfig struct {
	// MaxSteps bounds total step executions per run so a misconfigured
	// next-edge cycle always terminates.
	MaxSteps           int
	TimeoutSeconds     int
	StepTimeoutSeconds int
	DryRun             bool
}

func Default() Config {
	return Config{
		HttpPort:         8420,
		MemoryType:       MEMORY_TYPE_SHORT_TERM,
		RecorderCapacity: 1024,
		RedisConfig: RedisConfig{
			Addrs:     []string{"localhost:6379"},
			Namespace: "forge",
		},
		Engine: EngineConfig{
			MaxSteps: 100,
		},
	}
}
