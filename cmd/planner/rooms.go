package main

import (
	"fmt"

	"github.com/npezzotti/go-tripplanner/internal/planner"
	"github.com/spf13/cobra"
)

var (
	roomDescription string
	roomPublic      bool
)

var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "create a room and become its controller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		room, err := a.client.CreateRoom(cmd.Context(), args[0], roomDescription, roomPublic)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), room.Code)
		return nil
	},
}

var joinCmd = &cobra.Command{
	Use:   "join CODE",
	Short: "join a room by its six character code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := roomCodeArg(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.client.JoinRoom(cmd.Context(), code); err != nil {
			return fmt.Errorf("join %s: %w", code, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "joined %s\n", code)
		return nil
	},
}

var leaveCmd = &cobra.Command{
	Use:   "leave CODE",
	Short: "leave a room; the controller leaving closes it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := roomCodeArg(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.client.LeaveRoom(cmd.Context(), code); err != nil {
			return fmt.Errorf("leave %s: %w", code, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "left %s\n", code)
		return nil
	},
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "list public rooms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rooms, err := a.client.PublicRooms(cmd.Context())
		if err != nil {
			return err
		}

		for _, room := range rooms {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", room.Code, room.Name, room.Description)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().StringVarP(&roomDescription, "description", "d", "", "room description")
	createCmd.Flags().BoolVar(&roomPublic, "public", false, "list the room publicly")
}

func roomCodeArg(arg string) (string, error) {
	code := planner.NormalizeRoomCode(arg)
	if !planner.ValidRoomCode(code) {
		return "", fmt.Errorf("%q: %w", arg, planner.ErrInvalidRoomCode)
	}
	return code, nil
}
