package cli

import (
	"fmt"
	"strconv"

	"github.com/edupath/coursesync/internal/sites"
)

// RunSitesAdd registers a new site, prompting for the server URL, the WS
// token (no echo) and the account's user id.
func RunSitesAdd(registry *sites.Registry) error {
	name, err := readLine("Site name: ")
	if err != nil {
		return err
	}
	serverURL, err := readLine("Server URL: ")
	if err != nil {
		return err
	}
	token, err := readSecret("WS token: ")
	if err != nil {
		return err
	}
	userIDStr, err := readLine("User id: ")
	if err != nil {
		return err
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return fmt.Errorf("user id must be a number: %w", err)
	}

	site, err := registry.Add(name, serverURL, token, userID)
	if err != nil {
		return fmt.Errorf("failed to register site: %w", err)
	}
	fmt.Printf("Registered %q (%s)\n", site.Name, site.ID)
	return nil
}

// RunSitesList prints the registered sites.
func RunSitesList(registry *sites.Registry) error {
	all, err := registry.Sites()
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}
	if len(all) == 0 {
		fmt.Println("No sites registered. Run 'coursesync sites add' first.")
		return nil
	}

	for _, site := range all {
		fmt.Printf("%s  %-20s %s (user %d)\n", site.ID, site.Name, site.ServerURL, site.UserID)
	}
	return nil
}

// RunSitesRemove unregisters a site by id.
func RunSitesRemove(registry *sites.Registry, siteID string) error {
	if siteID == "" {
		return fmt.Errorf("site id is required")
	}
	if err := registry.Remove(siteID); err != nil {
		return fmt.Errorf("failed to remove site: %w", err)
	}
	fmt.Printf("Removed %s\n", siteID)
	return nil
}
