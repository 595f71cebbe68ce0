package framework

import (
	"encoding"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// YAMLFeeder feeds configuration from a YAML file.
type YAMLFeeder struct {
	Path string
}

func (f YAMLFeeder) Feed(target any) error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", f.Path, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parsing config file %s: %w", f.Path, err)
	}
	return nil
}

// TOMLFeeder feeds configuration from a TOML file.
type TOMLFeeder struct {
	Path string
}

func (f TOMLFeeder) Feed(target any) error {
	if _, err := toml.DecodeFile(f.Path, target); err != nil {
		return fmt.Errorf("parsing config file %s: %w", f.Path, err)
	}
	return nil
}

// FileFeeder picks a feeder for the file by extension: .toml gets the TOML
// feeder, everything else YAML.
func FileFeeder(path string) Feeder {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return TOMLFeeder{Path: path}
	}
	return YAMLFeeder{Path: path}
}

// EnvFeeder feeds configuration from environment variables using `env` struct
// tags. Variable names are upper-cased tags, optionally prefixed: prefix
// "FRAMEWORK" and tag "stop_timeout" read FRAMEWORK_STOP_TIMEOUT.
type EnvFeeder struct {
	Prefix string
}

func (f EnvFeeder) Feed(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrConfigNotPointer
	}
	return f.feedStruct(v.Elem())
}

func (f EnvFeeder) feedStruct(v reflect.Value) error {
	if v.Kind() != reflect.Struct {
		return ErrConfigNotStruct
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if fieldType.Type.Kind() == reflect.Struct && fieldType.Type != reflect.TypeOf(time.Time{}) {
			if err := f.feedStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag, exists := fieldType.Tag.Lookup("env")
		if !exists {
			continue
		}
		envName := strings.ToUpper(envTag)
		if f.Prefix != "" {
			envName = f.Prefix + "_" + envName
		}
		envValue := os.Getenv(envName)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("env %s: %w", envName, err)
		}
	}
	return nil
}

// setFieldValue converts and sets a field value from its string form.
func setFieldValue(field reflect.Value, strValue string) error {
	if !field.CanSet() {
		return ErrConfigFieldReadOnly
	}

	// durations carry units ("30s") that plain integer casting cannot parse
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(strValue)
		if err != nil {
			return fmt.Errorf("cannot parse duration: %w", err)
		}
		field.Set(reflect.ValueOf(d))
		return nil
	}
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(strValue))
		}
	}

	convertedValue, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}
	field.Set(reflect.ValueOf(convertedValue))
	return nil
}
