package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/gridrace/internal/domain/model"
)

// defaultBootstrapPeriod is used when a bootstrap run has no period set.
const defaultBootstrapPeriod = 1_000_000

// SeedUser is a pre-registered participant from the master data file.
type SeedUser struct {
	Token  string `koanf:"token"`
	UserID string `koanf:"id"`
}

// fileData mirrors the YAML master data layout.
type fileData struct {
	StartAt     int64                  `koanf:"start_at"`
	Period      int64                  `koanf:"period"`
	Checkpoints map[string]model.Point `koanf:"checkpoints"`
	Tasks       []Task                 `koanf:"tasks"`
	Users       []SeedUser             `koanf:"users"`
}

// Load reads and validates a master data file. A positive bootstrapOffset
// overrides the start time to wall-now plus the offset and defaults the
// period when absent; otherwise a missing start or period is fatal.
func Load(ctx context.Context, path string, bootstrapOffset int64, opts ...Option) (*Schedule, []SeedUser, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrLoadMasterData, err)
	}

	var data fileData
	if err := k.UnmarshalWithConf("", &data, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrLoadMasterData, err)
	}

	if bootstrapOffset > 0 {
		data.StartAt = time.Now().UnixMilli() + bootstrapOffset
		if data.Period <= 0 {
			data.Period = defaultBootstrapPeriod
		}
	}

	s, err := New(data.StartAt, data.Period, data.Checkpoints, data.Tasks, opts...)
	if err != nil {
		return nil, nil, err
	}
	return s, data.Users, nil
}
