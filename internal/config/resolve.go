package config

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"
)

// resolveTimeout bounds external lookups made while resolving a value.
const resolveTimeout = 30 * time.Second

// lookupSRV and runCommand are swapped out in tests.
var (
	lookupSRV  = net.DefaultResolver.LookupSRV
	runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).Output()
	}
)

// ResolveValue expands a backend config value:
//   - op://vault/item/field reads a 1Password secret via `op read`
//   - srv://record/path becomes https://host:port/path from a DNS SRV lookup
//   - $(cmd) is replaced by the command's trimmed output
//   - ${VAR} and $VAR are expanded from the environment
//
// Anything else is returned trimmed.
func ResolveValue(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	switch {
	case strings.HasPrefix(value, "op://"):
		return resolveOnePassword(ctx, value)
	case strings.HasPrefix(value, "srv://"):
		return resolveSRV(ctx, value)
	case strings.HasPrefix(value, "$(") && strings.HasSuffix(value, ")"):
		return resolveCommand(ctx, value[2:len(value)-1])
	default:
		return expandEnv(value), nil
	}
}

// resolveOnePassword accepts op://vault/item/field with an optional
// ?account= query parameter.
func resolveOnePassword(ctx context.Context, opURL string) (string, error) {
	u, err := url.Parse(opURL)
	if err != nil {
		return "", fmt.Errorf("1password: invalid reference %s: %w", opURL, err)
	}

	ref := fmt.Sprintf("op://%s%s", u.Host, u.Path)
	args := []string{"read", ref}
	if account := u.Query().Get("account"); account != "" {
		args = append(args, "--account", account)
	}

	output, err := runCommand(ctx, "op", args...)
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("1password: failed to read %s: %s", ref, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("1password: failed to read %s: %w", ref, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// resolveSRV turns srv://_service._proto.domain/path into
// https://host:port/path using the highest priority record.
func resolveSRV(ctx context.Context, srvURL string) (string, error) {
	u, err := url.Parse(srvURL)
	if err != nil {
		return "", fmt.Errorf("invalid srv:// URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("srv:// URL missing host: %s", srvURL)
	}

	_, addrs, err := lookupSRV(ctx, "", "", u.Host)
	if err != nil {
		return "", fmt.Errorf("SRV lookup failed for %s: %w", u.Host, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no SRV records found for %s", u.Host)
	}

	addr := addrs[0]
	host := strings.TrimSuffix(addr.Target, ".")
	return fmt.Sprintf("https://%s:%d%s", host, addr.Port, u.Path), nil
}

func resolveCommand(ctx context.Context, cmd string) (string, error) {
	output, err := runCommand(ctx, "sh", "-c", cmd)
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("command failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("command failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// expandEnv expands $VAR and ${VAR} anywhere in s. A value without a dollar
// sign is returned unchanged.
func expandEnv(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return os.ExpandEnv(s)
}
