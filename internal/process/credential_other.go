//go:build !unix

package process

import "os/exec"

// applyCredential rejects alternate identities where none can be honored.
func applyCredential(_ *exec.Cmd, cred *Credential) error {
	if cred.Username == "" && cred.Domain == "" {
		return nil
	}
	return ErrCredentialUnsupported
}
