//go:build unix

package process

import (
	"fmt"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
)

// applyCredential resolves Username to a uid/gid and sets it on cmd.
func applyCredential(cmd *exec.Cmd, cred *Credential) error {
	if cred.Domain != "" {
		return fmt.Errorf("domain %q: %w", cred.Domain, ErrCredentialUnsupported)
	}
	if cred.Username == "" {
		return nil
	}

	u, err := user.Lookup(cred.Username)
	if err != nil {
		return err
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return fmt.Errorf("uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return fmt.Errorf("gid %q: %w", u.Gid, err)
	}

	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Credential = &syscall.Credential{
		Uid: uint32(uid),
		Gid: uint32(gid),
	}
	return nil
}
