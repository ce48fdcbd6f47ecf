package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-redis/redis/v8"
	"student-records-go/models"
)

// DefaultRedisKeyPrefix namespaces every key the repository writes
const DefaultRedisKeyPrefix = "roster:"

const (
	orderKeySuffix   = "order"    // List: sequence ids in roster order
	studentKeyPrefix = "student:" // Hash prefix: {prefix}student:{seq} -> record fields
)

// RedisRepository keeps the roster snapshot in Redis instead of the flat file.
// Like the file, every SaveAll replaces the whole snapshot.
type RedisRepository struct {
	Client    *redis.Client
	Ctx       context.Context // Base context
	KeyPrefix string
	Logger    *slog.Logger
}

// NewRedisRepository creates a new RedisRepository instance
func NewRedisRepository(client *redis.Client, keyPrefix string, logger *slog.Logger) *RedisRepository {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRepository{
		Client:    client,
		Ctx:       context.Background(),
		KeyPrefix: keyPrefix,
		Logger:    logger,
	}
}

func (s *RedisRepository) orderKey() string {
	return s.KeyPrefix + orderKeySuffix
}

func (s *RedisRepository) studentKey(seq string) string {
	return s.KeyPrefix + studentKeyPrefix + seq
}

// LoadAll reads the snapshot in roster order. Entries with missing fields or a
// non-integer roll are skipped and reported.
func (s *RedisRepository) LoadAll() ([]models.StudentRecord, LoadReport, error) {
	records := []models.StudentRecord{}
	var report LoadReport

	seqs, err := s.Client.LRange(s.Ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return records, report, nil
		}
		return nil, report, fmt.Errorf("failed to read roster order from Redis: %w", err)
	}

	cmds := make([]*redis.StringStringMapCmd, len(seqs))
	_, err = s.Client.Pipelined(s.Ctx, func(pipe redis.Pipeliner) error {
		for i, seq := range seqs {
			cmds[i] = pipe.HGetAll(s.Ctx, s.studentKey(seq))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, report, fmt.Errorf("failed to read roster entries from Redis: %w", err)
	}

	for i, cmd := range cmds {
		record, reason := decodeHash(cmd.Val())
		if reason != "" {
			report.skip(i+1, reason)
			s.Logger.Warn("skipping malformed roster entry", "key", s.studentKey(seqs[i]), "reason", reason)
			continue
		}
		records = append(records, record)
	}
	report.Loaded = len(records)
	return records, report, nil
}

// SaveAll replaces the stored snapshot in a single MULTI/EXEC transaction.
func (s *RedisRepository) SaveAll(records []models.StudentRecord) error {
	oldSeqs, err := s.Client.LRange(s.Ctx, s.orderKey(), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read roster order from Redis: %w", err)
	}

	stale := make([]string, 0, len(oldSeqs)+1)
	stale = append(stale, s.orderKey())
	for _, seq := range oldSeqs {
		stale = append(stale, s.studentKey(seq))
	}

	_, err = s.Client.TxPipelined(s.Ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(s.Ctx, stale...)
		for i, record := range records {
			seq := strconv.Itoa(i)
			pipe.HSet(s.Ctx, s.studentKey(seq), map[string]interface{}{
				"roll":         record.Roll,
				"name":         record.Name,
				"studentClass": record.StudentClass,
				"parentPhone":  record.ParentPhone,
			})
			pipe.RPush(s.Ctx, s.orderKey(), seq)
		}
		return nil
	})
	if err != nil {
		s.Logger.Error("failed to save roster to Redis", "records", len(records), "error", err)
		return fmt.Errorf("failed to save roster to Redis: %w", err)
	}
	return nil
}

func decodeHash(data map[string]string) (models.StudentRecord, string) {
	if len(data) == 0 {
		return models.StudentRecord{}, "entry missing"
	}
	for _, field := range []string{"roll", "name", "studentClass", "parentPhone"} {
		if _, ok := data[field]; !ok {
			return models.StudentRecord{}, fmt.Sprintf("missing field %q", field)
		}
	}
	roll, err := strconv.Atoi(data["roll"])
	if err != nil {
		return models.StudentRecord{}, fmt.Sprintf("invalid roll number %q", data["roll"])
	}
	return models.StudentRecord{
		Roll:         roll,
		Name:         data["name"],
		StudentClass: data["studentClass"],
		ParentPhone:  data["parentPhone"],
	}, ""
}

// InitializeRedisClient creates a Redis client and pings it
func InitializeRedisClient(addr, password string, dbIndex int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbIndex,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}
