package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// This is appropriate for flags defined in init() - errors indicate programming bugs.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetFloat64 gets a float64 flag value or panics if the flag doesn't exist.
func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	val, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetDuration gets a duration flag value or panics if the flag doesn't exist.
func mustGetDuration(cmd *cobra.Command, name string) time.Duration {
	val, err := cmd.Flags().GetDuration(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// overrideInt replaces target with the flag value when the flag was set.
func overrideInt(cmd *cobra.Command, name string, target *int) {
	if cmd.Flags().Changed(name) {
		*target = mustGetInt(cmd, name)
	}
}

// overrideString replaces target with the flag value when the flag was set.
func overrideString(cmd *cobra.Command, name string, target *string) {
	if cmd.Flags().Changed(name) {
		*target = mustGetString(cmd, name)
	}
}

// overrideFloat64 replaces target with the flag value when the flag was set.
func overrideFloat64(cmd *cobra.Command, name string, target *float64) {
	if cmd.Flags().Changed(name) {
		if v := mustGetFloat64(cmd, name); v > 0 {
			*target = v
		}
	}
}

// overrideDuration replaces target with the flag value when the flag was set.
func overrideDuration(cmd *cobra.Command, name string, target *time.Duration) {
	if cmd.Flags().Changed(name) {
		if v := mustGetDuration(cmd, name); v > 0 {
			*target = v
		}
	}
}
