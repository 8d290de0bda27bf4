package cli

import (
	"fmt"
	"io"
	"strings"
)

// GenerateCompletion generates a shell completion script for the specified shell.
//
// Parameters:
//   - out: The writer to output the completion script.
//   - shell: The shell type ("bash", "zsh", "fish", "powershell").
//   - problems: The catalog problem names.
//   - solvers: The registered linear solver names.
//
// Returns:
//   - error: An error if the shell is not supported.
func GenerateCompletion(out io.Writer, shell string, problems, solvers []string) error {
	switch shell {
	case "bash":
		return generateBashCompletion(out, problems, solvers)
	case "zsh":
		return generateZshCompletion(out, problems, solvers)
	case "fish":
		return generateFishCompletion(out, problems, solvers)
	case "powershell", "ps":
		return generatePowerShellCompletion(out, problems, solvers)
	default:
		return fmt.Errorf("unsupported shell: %s (accepted values: bash, zsh, fish, powershell)", shell)
	}
}

func generateBashCompletion(out io.Writer, problems, solvers []string) error {
	script := `# Bash completion script for keffcalc
# Add this to your ~/.bashrc or ~/.bash_completion

_keffcalc_completions() {
    local cur prev opts problems solvers
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    opts="--help -h --version -V -problem -deck -solver -tol -max-iter -k0 -flux0 -refine -study -timeout -v -d --details -json -server -port -no-color -output -o -quiet -q -list -completion -profile"

    problems="%s"
    solvers="%s all"

    case "${prev}" in
        -problem)
            COMPREPLY=( $(compgen -W "${problems}" -- "${cur}") )
            return 0
            ;;
        -solver)
            COMPREPLY=( $(compgen -W "${solvers}" -- "${cur}") )
            return 0
            ;;
        -completion)
            COMPREPLY=( $(compgen -W "bash zsh fish powershell" -- "${cur}") )
            return 0
            ;;
        -deck|-output|-o)
            COMPREPLY=( $(compgen -f -- "${cur}") )
            return 0
            ;;
        -tol)
            COMPREPLY=( $(compgen -W "1e-4 1e-5 1e-6 1e-8" -- "${cur}") )
            return 0
            ;;
        -timeout)
            COMPREPLY=( $(compgen -W "30s 1m 5m 10m 30m" -- "${cur}") )
            return 0
            ;;
    esac

    if [[ "${cur}" == -* ]]; then
        COMPREPLY=( $(compgen -W "${opts}" -- "${cur}") )
        return 0
    fi
}

complete -F _keffcalc_completions keffcalc
`
	_, err := fmt.Fprintf(out, script, strings.Join(problems, " "), strings.Join(solvers, " "))
	return err
}

func generateZshCompletion(out io.Writer, problems, solvers []string) error {
	script := `#compdef keffcalc

# Zsh completion script for keffcalc
# Add this to your ~/.zshrc or place in $fpath

_keffcalc() {
    local -a problems solvers
    problems=(%s)
    solvers=(%s all)

    _arguments -s \
        '(-h --help)'{-h,--help}'[Show help message]' \
        '(-V --version)'{-V,--version}'[Show version information]' \
        '-problem[Catalog problem to solve]:problem:($problems)' \
        '-deck[YAML problem deck]:file:_files' \
        '-solver[Linear solver]:solver:($solvers)' \
        '-tol[Relative eigenvalue tolerance]:tolerance:(1e-4 1e-5 1e-6 1e-8)' \
        '-max-iter[Maximum number of power iterations]:count:' \
        '-k0[Initial eigenvalue estimate]:k:' \
        '-flux0[Uniform initial flux]:flux:' \
        '-refine[Additional mesh refinements]:count:(0 1 2 3)' \
        '-study[Refinement levels of a convergence study]:levels:' \
        '-timeout[Maximum execution time]:duration:(30s 1m 5m 10m 30m)' \
        '-v[Display flux profiles]' \
        '(-d --details)'{-d,--details}'[Display convergence trace]' \
        '-json[Output in JSON format]' \
        '-server[Start HTTP server mode]' \
        '-port[Server port]:port:(8080 3000 5000 9000)' \
        '-no-color[Disable colored output]' \
        '(-o -output)'{-o,-output}'[Output file path]:file:_files' \
        '(-q -quiet)'{-q,-quiet}'[Print the eigenvalue only]' \
        '-list[List problems and solvers]' \
        '-profile[Flux samples per group]:count:(11 21 41)' \
        '-completion[Generate completion script]:shell:(bash zsh fish powershell)'
}

_keffcalc "$@"
`
	_, err := fmt.Fprintf(out, script, strings.Join(problems, " "), strings.Join(solvers, " "))
	return err
}

func generateFishCompletion(out io.Writer, problems, solvers []string) error {
	script := `# Fish completion script for keffcalc
# Add this to ~/.config/fish/completions/keffcalc.fish

complete -c keffcalc -f

complete -c keffcalc -s h -l help -d 'Show help message'
complete -c keffcalc -s V -l version -d 'Show version information'

# Problem selection
complete -c keffcalc -o problem -d 'Catalog problem to solve' -xa '%s'
complete -c keffcalc -o deck -d 'YAML problem deck' -rF
complete -c keffcalc -o solver -d 'Linear solver' -xa '%s all'
complete -c keffcalc -o tol -d 'Relative eigenvalue tolerance' -xa '1e-4 1e-5 1e-6 1e-8'
complete -c keffcalc -o max-iter -d 'Maximum number of power iterations' -x
complete -c keffcalc -o k0 -d 'Initial eigenvalue estimate' -x
complete -c keffcalc -o flux0 -d 'Uniform initial flux' -x
complete -c keffcalc -o refine -d 'Additional mesh refinements' -xa '0 1 2 3'
complete -c keffcalc -o study -d 'Refinement levels of a convergence study' -x
complete -c keffcalc -o timeout -d 'Maximum execution time' -xa '30s 1m 5m 10m 30m'

# Output options
complete -c keffcalc -o v -d 'Display flux profiles'
complete -c keffcalc -o d -o details -d 'Display convergence trace'
complete -c keffcalc -o json -d 'Output in JSON format'
complete -c keffcalc -o o -o output -d 'Output file path' -rF
complete -c keffcalc -o q -o quiet -d 'Print the eigenvalue only'
complete -c keffcalc -o no-color -d 'Disable colored output'
complete -c keffcalc -o profile -d 'Flux samples per group' -xa '11 21 41'
complete -c keffcalc -o list -d 'List problems and solvers'

# Server mode
complete -c keffcalc -o server -d 'Start HTTP server mode'
complete -c keffcalc -o port -d 'Server port' -xa '8080 3000 5000 9000'

complete -c keffcalc -o completion -d 'Generate completion script' -xa 'bash zsh fish powershell'
`
	_, err := fmt.Fprintf(out, script, strings.Join(problems, " "), strings.Join(solvers, " "))
	return err
}

func generatePowerShellCompletion(out io.Writer, problems, solvers []string) error {
	script := `# PowerShell completion script for keffcalc
# Add this to your $PROFILE

$keffcalcProblems = @(%s)
$keffcalcSolvers = @(%s, 'all')

Register-ArgumentCompleter -CommandName 'keffcalc' -Native -ScriptBlock {
    param($wordToComplete, $commandAst, $cursorPosition)

    $options = @(
        @{Name = '--help'; Description = 'Show help message' }
        @{Name = '--version'; Description = 'Show version information' }
        @{Name = '-problem'; Description = 'Catalog problem to solve' }
        @{Name = '-deck'; Description = 'YAML problem deck' }
        @{Name = '-solver'; Description = 'Linear solver' }
        @{Name = '-tol'; Description = 'Relative eigenvalue tolerance' }
        @{Name = '-max-iter'; Description = 'Maximum number of power iterations' }
        @{Name = '-k0'; Description = 'Initial eigenvalue estimate' }
        @{Name = '-flux0'; Description = 'Uniform initial flux' }
        @{Name = '-refine'; Description = 'Additional mesh refinements' }
        @{Name = '-study'; Description = 'Refinement levels of a convergence study' }
        @{Name = '-timeout'; Description = 'Maximum execution time' }
        @{Name = '-v'; Description = 'Display flux profiles' }
        @{Name = '-details'; Description = 'Display convergence trace' }
        @{Name = '-json'; Description = 'Output in JSON format' }
        @{Name = '-server'; Description = 'Start HTTP server mode' }
        @{Name = '-port'; Description = 'Server port' }
        @{Name = '-no-color'; Description = 'Disable colored output' }
        @{Name = '-output'; Description = 'Output file path' }
        @{Name = '-quiet'; Description = 'Print the eigenvalue only' }
        @{Name = '-list'; Description = 'List problems and solvers' }
        @{Name = '-profile'; Description = 'Flux samples per group' }
        @{Name = '-completion'; Description = 'Generate completion script' }
    )

    $elements = $commandAst.CommandElements
    $prevElement = if ($elements.Count -gt 2) { $elements[-2].ToString() } else { '' }

    $values = switch ($prevElement) {
        '-problem' { $keffcalcProblems }
        '-solver' { $keffcalcSolvers }
        '-completion' { @('bash', 'zsh', 'fish', 'powershell') }
        '-timeout' { @('30s', '1m', '5m', '10m', '30m') }
        default { $null }
    }
    if ($values) {
        $values | Where-Object { $_ -like "$wordToComplete*" } | ForEach-Object {
            [System.Management.Automation.CompletionResult]::new($_, $_, 'ParameterValue', $_)
        }
        return
    }

    $options | Where-Object { $_.Name -like "$wordToComplete*" } | ForEach-Object {
        [System.Management.Automation.CompletionResult]::new($_.Name, $_.Name, 'ParameterName', $_.Description)
    }
}
`
	_, err := fmt.Fprintf(out, script, quoteList(problems), quoteList(solvers))
	return err
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return strings.Join(quoted, ", ")
}
