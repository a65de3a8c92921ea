package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/rbacadm/internal/api"
	"github.com/dropDatabas3/rbacadm/internal/cache"
	"github.com/dropDatabas3/rbacadm/internal/config"
	"github.com/dropDatabas3/rbacadm/internal/console"
	"github.com/dropDatabas3/rbacadm/internal/devserver"
	"github.com/dropDatabas3/rbacadm/internal/observability/logger"
	"github.com/dropDatabas3/rbacadm/internal/rbac"
	"github.com/dropDatabas3/rbacadm/internal/tokenstore"
)

// app junta todo lo que un comando necesita ya cableado.
type app struct {
	cfg     *config.Config
	svc     *console.Service
	session *rbac.Session
	creds   tokenstore.Store
}

func (a *app) close() {
	if a.creds != nil {
		_ = a.creds.Close()
	}
}

// buildApp arma la capa de servicio: config, credencial persistida, sesión y
// cliente del backend.
func buildApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})

	creds, err := tokenstore.New(tokenstore.Config{
		Driver:        cfg.Session.Store,
		FilePath:      cfg.Session.File.Path,
		RedisHost:     cfg.Session.Redis.Host,
		RedisPort:     cfg.Session.Redis.Port,
		RedisPassword: cfg.Session.Redis.Password,
		RedisDB:       cfg.Session.Redis.DB,
		RedisPrefix:   cfg.Session.Redis.Prefix,
	})
	if err != nil {
		return nil, err
	}

	session := &rbac.Session{}
	if saved, err := creds.Load(context.Background()); err == nil {
		*session = *saved
	} else if !tokenstore.IsNoSession(err) {
		logger.L().Warn("could not load persisted session", logger.Err(err))
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.APITimeout(), func() string {
		return session.Token
	})

	svc := console.New(session, client, cache.NewSnapshot(cfg.CacheTTL()), creds)
	return &app{cfg: cfg, svc: svc, session: session, creds: creds}, nil
}

func printNotification(n console.Notification) {
	fmt.Println(console.RenderNotification(n))
}

// confirmOnTerminal pide la confirmación explícita de una auto-democión.
func confirmOnTerminal(roleName string) bool {
	fmt.Printf("You are about to remove your own admin privileges (new role: %s).\n", roleName)
	fmt.Print("Type 'yes' to continue: ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

func main() {
	_ = godotenv.Load(".env")

	var cfgPath string

	root := &cobra.Command{
		Use:           "rbacadm",
		Short:         "Consola de administración RBAC (usuarios, roles, perfil)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", envOr("RBACADM_CONFIG", ""), "Ruta al config.yaml (env RBACADM_CONFIG)")

	// login
	var loginEmail, loginPassword string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Autenticarse contra el backend y persistir la sesión",
		RunE: func(cmd *cobra.Command, args []string) error {
			if loginEmail == "" {
				return fmt.Errorf("--email es requerido")
			}
			if loginPassword == "" {
				return fmt.Errorf("--password es requerido")
			}
			a, err := buildApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.svc.Login(cmd.Context(), loginEmail, loginPassword)
			printNotification(n)
			return err
		},
	}
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Email del actor")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password del actor")

	// logout
	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Invalidar la sesión y borrar la credencial persistida",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.svc.Logout(cmd.Context())
			printNotification(n)
			return err
		},
	}

	// dashboard
	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Vista de inicio: contadores (admin) o perfil y permisos (usuario)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			d, err := a.svc.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(console.RenderDashboard(d))
			return nil
		},
	}

	// users
	usersCmd := &cobra.Command{Use: "users", Short: "Gestión de usuarios"}

	usersListCmd := &cobra.Command{
		Use:   "list",
		Short: "Listar usuarios (requiere manage_users o admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			rows, err := a.svc.Users(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(console.RenderUsers(rows))
			return nil
		},
	}

	var assignUserID, assignRoleID string
	var assignYes bool
	usersAssignCmd := &cobra.Command{
		Use:   "assign-role",
		Short: "Reasignar el rol de un usuario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if assignUserID == "" {
				return fmt.Errorf("--user es requerido")
			}
			if assignRoleID == "" {
				return fmt.Errorf("--role es requerido")
			}
			a, err := buildApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			change, err := a.svc.ProposeRoleChange(ctx, assignUserID, assignRoleID)
			if err != nil {
				return err
			}
			if change.Notification != nil {
				// Denegado: la única notificación de la acción ya salió.
				printNotification(*change.Notification)
				return fmt.Errorf("role change denied")
			}

			pending := change.Evaluation.Pending
			if change.Evaluation.Outcome == rbac.OutcomeRequiresConfirmation {
				if !assignYes && !confirmOnTerminal(pending.Role().Name) {
					printNotification(a.svc.CancelRoleChange(pending))
					return nil
				}
				if err := a.svc.ConfirmRoleChange(pending); err != nil {
					return err
				}
			}

			result, err := a.svc.ApplyRoleChange(ctx, pending)
			printNotification(result.Notification)
			if err != nil {
				return err
			}
			if result.RedirectToLogin {
				fmt.Println("run 'rbacadm login' to start a new session")
			}
			return nil
		},
	}
	usersAssignCmd.Flags().StringVar(&assignUserID, "user", "", "Id del usuario afectado")
	usersAssignCmd.Flags().StringVar(&assignRoleID, "role", "", "Id del rol a asignar")
	usersAssignCmd.Flags().BoolVar(&assignYes, "yes", false, "Confirmar auto-democión sin preguntar")

	var deleteUserID string
	usersDeleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Eliminar un usuario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deleteUserID == "" {
				return fmt.Errorf("--user es requerido")
			}
			a, err := buildApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.svc.DeleteUser(cmd.Context(), deleteUserID)
			printNotification(n)
			return err
		},
	}
	usersDeleteCmd.Flags().StringVar(&deleteUserID, "user", "", "Id del usuario a eliminar")

	usersCmd.AddCommand(usersListCmd, usersAssignCmd, usersDeleteCmd)

	// roles
	rolesCmd := &cobra.Command{Use: "roles", Short: "Gestión del catálogo de roles"}

	rolesListCmd := &cobra.Command{
		Use:   "list",
		Short: "Listar roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			roles, err := a.svc.Roles(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(console.RenderRoles(roles))
			return nil
		},
	}

	var createName string
	var createPerms []string
	rolesCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Crear un rol (requiere admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if createName == "" {
				return fmt.Errorf("--name es requerido")
			}
			a, err := buildApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.svc.CreateRole(cmd.Context(), createName, createPerms)
			printNotification(n)
			return err
		},
	}
	rolesCreateCmd.Flags().StringVar(&createName, "name", "", "Nombre del rol")
	rolesCreateCmd.Flags().StringSliceVar(&createPerms, "permissions", nil, "Permisos del rol (view_dashboard, edit_profile, manage_users, manage_roles, view_reports)")

	var updateID, updateName string
	var updatePerms []string
	rolesUpdateCmd := &cobra.Command{
		Use:   "update",
		Short: "Reemplazar nombre y permisos de un rol (requiere admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if updateID == "" {
				return fmt.Errorf("--id es requerido")
			}
			if updateName == "" {
				return fmt.Errorf("--name es requerido")
			}
			a, err := buildApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.svc.UpdateRole(cmd.Context(), updateID, updateName, updatePerms)
			printNotification(n)
			return err
		},
	}
	rolesUpdateCmd.Flags().StringVar(&updateID, "id", "", "Id del rol")
	rolesUpdateCmd.Flags().StringVar(&updateName, "name", "", "Nombre del rol")
	rolesUpdateCmd.Flags().StringSliceVar(&updatePerms, "permissions", nil, "Permisos del rol")

	var deleteRoleID string
	rolesDeleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Eliminar un rol (requiere admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deleteRoleID == "" {
				return fmt.Errorf("--id es requerido")
			}
			a, err := buildApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.svc.DeleteRole(cmd.Context(), deleteRoleID)
			printNotification(n)
			return err
		},
	}
	rolesDeleteCmd.Flags().StringVar(&deleteRoleID, "id", "", "Id del rol a eliminar")

	rolesCmd.AddCommand(rolesListCmd, rolesCreateCmd, rolesUpdateCmd, rolesDeleteCmd)

	// profile
	profileCmd := &cobra.Command{Use: "profile", Short: "Perfil del actor"}

	profileShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Mostrar el perfil de la sesión",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.svc.Profile()
			if err != nil {
				return err
			}
			fmt.Print(console.RenderProfile(p))
			return nil
		},
	}

	var pName, pEmail, pCurrent, pNew, pConfirm string
	profileUpdateCmd := &cobra.Command{
		Use:   "update",
		Short: "Actualizar nombre, email y opcionalmente el password",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			// Defaults desde la sesión: cambiar sólo el password no obliga a
			// repetir nombre y email.
			if pName == "" {
				pName = a.session.Name
			}
			if pEmail == "" {
				pEmail = a.session.Email
			}

			n, err := a.svc.UpdateProfile(cmd.Context(), rbac.ProfilePatch{
				Name:            pName,
				Email:           pEmail,
				CurrentPassword: pCurrent,
				NewPassword:     pNew,
				ConfirmPassword: pConfirm,
			})
			printNotification(n)
			return err
		},
	}
	profileUpdateCmd.Flags().StringVar(&pName, "name", "", "Nombre nuevo (default: el actual)")
	profileUpdateCmd.Flags().StringVar(&pEmail, "email", "", "Email nuevo (default: el actual)")
	profileUpdateCmd.Flags().StringVar(&pCurrent, "current-password", "", "Password actual (requerido para cambiar el password)")
	profileUpdateCmd.Flags().StringVar(&pNew, "new-password", "", "Password nuevo")
	profileUpdateCmd.Flags().StringVar(&pConfirm, "confirm-password", "", "Confirmación del password nuevo")

	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd)

	// dev-server
	devServerCmd := &cobra.Command{
		Use:   "dev-server",
		Short: "Levantar el backend de referencia en memoria",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
			return runDevServer(cfg)
		},
	}

	root.AddCommand(loginCmd, logoutCmd, dashboardCmd, usersCmd, rolesCmd, profileCmd, devServerCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// runDevServer corre el backend de referencia hasta SIGINT/SIGTERM.
func runDevServer(cfg *config.Config) error {
	window, _ := time.ParseDuration(cfg.DevServer.Rate.Login.Window)
	opts := devserver.Options{
		AdminEmail:    cfg.DevServer.Seed.AdminEmail,
		AdminPassword: cfg.DevServer.Seed.AdminPassword,
		LoginLimit:    cfg.DevServer.Rate.Login.Limit,
		LoginWindow:   window,
	}
	srv, err := devserver.New(opts)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.DevServer.Addr,
		Handler:           srv.Handler(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("dev server listening", logger.String("addr", cfg.DevServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		logger.L().Info("dev server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
