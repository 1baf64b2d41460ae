package clicfg

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"
)

var (
	ErrCannotParseFlags = errors.New("cannot parse flags")

	durationType = reflect.TypeOf(time.Duration(0))
)

// ParseFlags copies the values of c's flags into the fields of the struct s points to.
// Fields are matched by their `flag` tag, untagged fields are left alone.
func ParseFlags(c *cli.Command, s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr {
		return fmt.Errorf("%w: expected pointer to struct, got %T", ErrCannotParseFlags, s)
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("%w: expected pointer to struct, got pointer to %s", ErrCannotParseFlags, v.Kind())
	}

	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if !fieldValue.CanSet() {
			continue
		}

		flagName := field.Tag.Get("flag")
		if flagName == "" {
			continue
		}

		if err := setField(c, flagName, field, fieldValue); err != nil {
			return err
		}
	}

	return nil
}

func setField(c *cli.Command, flagName string, field reflect.StructField, fieldValue reflect.Value) error {
	// Duration is an int64 underneath, it must be handled before the kind switch.
	if field.Type == durationType {
		fieldValue.SetInt(int64(c.Duration(flagName)))
		return nil
	}

	switch field.Type.Kind() {
	case reflect.String:
		fieldValue.SetString(c.String(flagName))
	case reflect.Bool:
		fieldValue.SetBool(c.Bool(flagName))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fieldValue.SetInt(int64(c.Int(flagName)))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fieldValue.SetUint(uint64(c.Uint(flagName)))
	case reflect.Float32, reflect.Float64:
		fieldValue.SetFloat(c.Float64(flagName))
	case reflect.Slice:
		if field.Type.Elem().Kind() != reflect.String {
			return fmt.Errorf("%w: field %s: unsupported slice type %s", ErrCannotParseFlags, field.Name, field.Type)
		}
		fieldValue.Set(reflect.ValueOf(c.StringSlice(flagName)).Convert(field.Type))
	default:
		strVal := c.String(flagName)
		if strVal != "" {
			if err := setValueFromString(fieldValue, strVal); err != nil {
				return fmt.Errorf("%w: failed to set field %s: %w", ErrCannotParseFlags, field.Name, err)
			}
		}
	}

	return nil
}

func setValueFromString(fieldValue reflect.Value, strVal string) error {
	switch fieldValue.Kind() {
	case reflect.String:
		fieldValue.SetString(strVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(strVal)
		if err != nil {
			return err
		}
		fieldValue.SetBool(boolVal)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intVal, err := strconv.ParseInt(strVal, 10, 64)
		if err != nil {
			return err
		}
		fieldValue.SetInt(intVal)
	default:
		return fmt.Errorf("%w: unsupported type: %s", ErrCannotParseFlags, fieldValue.Kind())
	}
	return nil
}
